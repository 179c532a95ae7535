package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/coordinator"
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
	"github.com/DoyleJ11/second-law-lobby/internal/ws"
)

func newTestAPI(t *testing.T, opts Options) (*coordinator.Coordinator, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := coordinator.New(ctx)
	if opts.WS.OutboxSize == 0 {
		opts.WS = ws.DefaultOptions()
	}
	srv := httptest.NewServer(SetupRoutes(c, opts, zap.NewNop()))
	t.Cleanup(srv.Close)
	return c, srv
}

// hostRoom creates a room straight through the coordinator inbox.
func hostRoom(t *testing.T, c *coordinator.Coordinator, code, skin string) {
	t.Helper()
	out := make(chan protocol.Message, 4)
	c.Inbox() <- coordinator.Connect{ConnID: "host-" + code, Outbox: out}
	c.Inbox() <- coordinator.FromClient{ConnID: "host-" + code, Msg: protocol.CreateRoom{RoomCode: code, HostSkin: skin}}
	select {
	case m := <-out:
		require.Equal(t, protocol.RoomCreated{RoomCode: code}, m)
	case <-time.After(time.Second):
		t.Fatal("room not created")
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	_, srv := newTestAPI(t, Options{})
	resp, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSuggestCode_ReturnsFreeValidCode(t *testing.T) {
	c, srv := newTestAPI(t, Options{})
	hostRoom(t, c, "ABCD", "h1")

	for i := 0; i < 20; i++ {
		resp, body := get(t, srv.URL+"/rooms/code")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got codeResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.True(t, room.ValidCode(got.Code), got.Code)
		assert.NotEqual(t, "ABCD", got.Code)
	}
}

func TestGetRoom(t *testing.T) {
	c, srv := newTestAPI(t, Options{})

	resp, _ := get(t, srv.URL+"/rooms/ABCD")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	hostRoom(t, c, "ABCD", "h1")
	resp, body := get(t, srv.URL+"/rooms/abcd")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got roomResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, roomResponse{Code: "ABCD", HostSkin: "h1", Players: 0, Capacity: room.Capacity, Open: true}, got)

	resp, _ = get(t, srv.URL+"/rooms/not-a-code")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomQR(t *testing.T) {
	c, srv := newTestAPI(t, Options{PublicURL: "https://play.example.com/lobby"})

	resp, _ := get(t, srv.URL+"/rooms/WXYZ/qr")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	hostRoom(t, c, "WXYZ", "h1")
	resp, body := get(t, srv.URL+"/rooms/WXYZ/qr")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
}

func TestJoinURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://lobby.local:8080/rooms/ABCD/qr", nil)
	assert.Equal(t, "http://lobby.local:8080/?room=ABCD", JoinURL(r, "", "ABCD"))
	assert.Equal(t, "https://play.example.com/lobby?room=ABCD", JoinURL(r, "https://play.example.com/lobby", "ABCD"))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://lobby.local:8080/?room=ABCD", JoinURL(r, "", "ABCD"))
}

func TestRateLimit(t *testing.T) {
	_, srv := newTestAPI(t, Options{RateLimit: 2})
	for i := 0; i < 2; i++ {
		resp, _ := get(t, srv.URL+"/healthz")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	_, srv := newTestAPI(t, Options{AllowedOrigins: []string{"https://game.example.com"}})
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://game.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://game.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
