package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/second-law-lobby/internal/history"
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

const within = 200 * time.Millisecond

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, opts...)
}

func connect(t *testing.T, c *Coordinator, id string) chan protocol.Message {
	t.Helper()
	out := make(chan protocol.Message, 16)
	c.Inbox() <- Connect{ConnID: id, Outbox: out}
	return out
}

func send(c *Coordinator, id string, m protocol.Message) {
	c.Inbox() <- FromClient{ConnID: id, Msg: m}
}

// recv waits for one message so tests never hang.
func recv(t *testing.T, ch <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

func recvNone(t *testing.T, ch <-chan protocol.Message) {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no message, got %T %+v", m, m)
	case <-time.After(50 * time.Millisecond):
	}
}

func state(t *testing.T, c *Coordinator) View {
	t.Helper()
	reply := make(chan View, 1)
	c.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func roomView(t *testing.T, c *Coordinator, code string) RoomView {
	t.Helper()
	reply := make(chan RoomView, 1)
	c.Inbox() <- GetRoom{Code: code, Reply: reply}
	return <-reply
}

func createRoom(t *testing.T, c *Coordinator, hostID, code string) chan protocol.Message {
	t.Helper()
	out := connect(t, c, hostID)
	send(c, hostID, protocol.CreateRoom{RoomCode: code, HostSkin: "3"})
	require.Equal(t, protocol.RoomCreated{RoomCode: code}, recv(t, out))
	return out
}

func joinRoom(t *testing.T, c *Coordinator, id, code, name string) chan protocol.Message {
	t.Helper()
	out := connect(t, c, id)
	send(c, id, protocol.JoinRoom{RoomCode: code, Name: name, SkinID: "1"})
	_, ok := recv(t, out).(protocol.JoinSuccess)
	require.True(t, ok, "expected joinSuccess for %s", name)
	return out
}

func TestCreateRoom_DuplicateFailsAndKeepsOriginal(t *testing.T) {
	c := newTestCoordinator(t)
	createRoom(t, c, "host-1", "ABCD")

	other := connect(t, c, "host-2")
	send(c, "host-2", protocol.CreateRoom{RoomCode: "ABCD", HostSkin: "9"})

	msg := recv(t, other)
	require.Equal(t, "DuplicateRoom", msg.(protocol.RoomError).Code)

	view := roomView(t, c, "ABCD")
	require.True(t, view.Found)
	assert.Equal(t, "3", view.HostSkin)
	assert.Empty(t, view.Players)
	assert.Equal(t, 1, state(t, c).NumRooms)
}

func TestCreateRoom_RejectsMalformedCodeAndSecondRoom(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")

	send(c, "host", protocol.CreateRoom{RoomCode: "WXYZ"})
	assert.Equal(t, "AlreadyInRoom", recv(t, host).(protocol.RoomError).Code)

	other := connect(t, c, "other")
	send(c, "other", protocol.CreateRoom{RoomCode: "AB"})
	assert.Equal(t, "MalformedPayload", recv(t, other).(protocol.RoomError).Code)

	// O is outside the code alphabet.
	send(c, "other", protocol.CreateRoom{RoomCode: "ROOM"})
	assert.Equal(t, "MalformedPayload", recv(t, other).(protocol.RoomError).Code)

	send(c, "other", protocol.CreateRoom{RoomCode: " wxyz"})
	assert.Equal(t, protocol.RoomCreated{RoomCode: "WXYZ"}, recv(t, other))
}

func TestScenario_NellAndOyo(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")

	nell := connect(t, c, "nell")
	send(c, "nell", protocol.JoinRoom{RoomCode: "ABCD", Name: "Nell", SkinID: "2"})
	assert.Equal(t, protocol.JoinSuccess{
		RoomCode:  "ABCD",
		HostSkin:  "3",
		GameState: room.DefaultEnvironment(),
	}, recv(t, nell))
	assert.Equal(t, protocol.PlayerJoined{Name: "Nell", SkinID: "2", Ready: false}, recv(t, host))

	send(c, "nell", protocol.ReadyStateChange{Ready: true})
	want := protocol.ReadyStateUpdate{Name: "Nell", Ready: true}
	assert.Equal(t, want, recv(t, host))
	assert.Equal(t, want, recv(t, nell))

	oyo := joinRoom(t, c, "oyo", "ABCD", "Oyo")
	assert.Equal(t, protocol.PlayerJoined{Name: "Oyo", SkinID: "1"}, recv(t, host))
	recvNone(t, nell) // playerJoined is host-only

	send(c, "oyo", protocol.ReadyStateChange{Ready: true})
	for _, ch := range []chan protocol.Message{host, nell, oyo} {
		assert.Equal(t, protocol.ReadyStateUpdate{Name: "Oyo", Ready: true}, recv(t, ch))
	}

	send(c, "oyo", protocol.ReadyStateChange{Ready: false})
	for _, ch := range []chan protocol.Message{host, nell, oyo} {
		assert.Equal(t, protocol.ReadyStateUpdate{Name: "Oyo", Ready: false}, recv(t, ch))
	}
}

func TestJoin_UnknownCodeCreatesNothing(t *testing.T) {
	c := newTestCoordinator(t)
	createRoom(t, c, "host", "ABCD")

	p := connect(t, c, "p1")
	send(c, "p1", protocol.JoinRoom{RoomCode: "ZZZZ", Name: "Nell"})
	assert.Equal(t, "RoomNotFound", recv(t, p).(protocol.RoomError).Code)

	assert.Equal(t, 1, state(t, c).NumMembers)
	assert.Empty(t, roomView(t, c, "ABCD").Players)
}

func TestJoin_IsIdempotentForKnownConnection(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	nell := connect(t, c, "nell")

	send(c, "nell", protocol.JoinRoom{RoomCode: "ABCD", Name: "Nell", SkinID: "2"})
	first := recv(t, nell)
	recv(t, host)

	send(c, "nell", protocol.JoinRoom{RoomCode: "abcd", Name: "Nell", SkinID: "2"})
	assert.Equal(t, first, recv(t, nell))
	recvNone(t, host)
	assert.Len(t, roomView(t, c, "ABCD").Players, 1)
}

func TestJoin_HostCannotJoinOwnRoom(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	send(c, "host", protocol.JoinRoom{RoomCode: "ABCD", Name: "Me"})
	assert.Equal(t, "AlreadyInRoom", recv(t, host).(protocol.RoomError).Code)
	assert.Empty(t, roomView(t, c, "ABCD").Players)
}

func TestJoin_RoomFull(t *testing.T) {
	c := newTestCoordinator(t)
	createRoom(t, c, "host", "ABCD")
	for i := 0; i < room.Capacity; i++ {
		joinRoom(t, c, fmt.Sprintf("p%d", i), "ABCD", fmt.Sprintf("P%d", i))
	}

	late := connect(t, c, "late")
	send(c, "late", protocol.JoinRoom{RoomCode: "ABCD", Name: "Late"})
	assert.Equal(t, "RoomFull", recv(t, late).(protocol.RoomError).Code)
	assert.Len(t, roomView(t, c, "ABCD").Players, room.Capacity)
}

func TestHostDisconnect_ClosesRoomForEveryone(t *testing.T) {
	c := newTestCoordinator(t)
	createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	b := joinRoom(t, c, "b", "ABCD", "B")

	c.Inbox() <- Disconnect{ConnID: "host"}

	for _, ch := range []chan protocol.Message{a, b} {
		assert.Equal(t, protocol.RoomClosed{}, recv(t, ch))
		recvNone(t, ch)
	}
	assert.False(t, roomView(t, c, "ABCD").Found)

	// former players can create or join elsewhere
	send(c, "a", protocol.CreateRoom{RoomCode: "WXYZ"})
	assert.Equal(t, protocol.RoomCreated{RoomCode: "WXYZ"}, recv(t, a))

	v := state(t, c)
	assert.Equal(t, 1, v.NumRooms)
	assert.Equal(t, 1, v.NumMembers)
}

func TestPlayerDisconnect_NotifiesHostOnly(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)
	joinRoom(t, c, "b", "ABCD", "B")
	recv(t, host)

	c.Inbox() <- Disconnect{ConnID: "b"}

	assert.Equal(t, protocol.PlayerLeft{Name: "B"}, recv(t, host))
	recvNone(t, a)

	view := roomView(t, c, "ABCD")
	require.True(t, view.Found)
	require.Len(t, view.Players, 1)
	assert.Equal(t, "A", view.Players[0].Name)
}

func TestLeaveRoom_MatchesDisconnectButKeepsConnection(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)

	send(c, "a", protocol.LeaveRoom{})
	assert.Equal(t, protocol.PlayerLeft{Name: "A"}, recv(t, host))

	send(c, "a", protocol.Ping{})
	assert.Equal(t, protocol.Pong{}, recv(t, a))

	send(c, "host", protocol.LeaveRoom{})
	assert.False(t, roomView(t, c, "ABCD").Found)
	assert.Equal(t, 2, state(t, c).NumConns)
}

func TestReady_IgnoredForNonPlayers(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	stranger := connect(t, c, "stranger")

	send(c, "stranger", protocol.ReadyStateChange{Ready: true})
	send(c, "host", protocol.ReadyStateChange{Ready: true})
	recvNone(t, stranger)
	recvNone(t, host)
}

func TestGameStart_HostOnly(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)

	send(c, "a", protocol.GameStart{})
	assert.Equal(t, "NotAuthorized", recv(t, a).(protocol.RoomError).Code)
	recvNone(t, host)

	send(c, "host", protocol.GameStart{})
	assert.Equal(t, protocol.GameStarting{}, recv(t, host))
	assert.Equal(t, protocol.GameStarting{}, recv(t, a))
}

func TestEnvironment_HostAuthoritativeWithDefaults(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)

	sector := "Docks"
	send(c, "host", protocol.GameState{State: &room.Environment{Sector: &sector, Weather: "storm"}})

	want := room.Environment{Sector: &sector, Weather: "storm", TimeOfDay: room.DefaultTimeOfDay}
	for _, ch := range []chan protocol.Message{host, a} {
		got := recv(t, ch).(protocol.GameState)
		require.NotNil(t, got.State)
		assert.Equal(t, want, *got.State)
	}

	send(c, "a", protocol.GameState{State: &room.Environment{Weather: "sunny"}})
	assert.Equal(t, "NotAuthorized", recv(t, a).(protocol.RoomError).Code)
	recvNone(t, host)
	assert.Equal(t, want, roomView(t, c, "ABCD").Environment)

	// missing state falls back to the baseline instead of failing
	send(c, "host", protocol.GameState{})
	got := recv(t, host).(protocol.GameState)
	assert.Equal(t, room.DefaultEnvironment(), *got.State)

	// late joiners get the current environment
	b := connect(t, c, "b")
	send(c, "b", protocol.JoinRoom{RoomCode: "ABCD", Name: "B"})
	assert.Equal(t, room.DefaultEnvironment(), recv(t, b).(protocol.JoinSuccess).GameState)
}

func TestPlayerInfo_HostOnlyAndKeepsReady(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "Nell")
	recv(t, host)
	b := joinRoom(t, c, "b", "ABCD", "Oyo")
	recv(t, host)

	send(c, "a", protocol.ReadyStateChange{Ready: true})
	recv(t, host)
	recv(t, a)
	recv(t, b)

	name := "Nellie"
	send(c, "a", protocol.UpdatePlayerInfo{NewNickname: &name})
	assert.Equal(t, protocol.PlayerInfoUpdate{OldName: "Nell", NewName: "Nellie", NewSkin: "1"}, recv(t, host))
	recvNone(t, b)
	recvNone(t, a)

	skin := "7"
	send(c, "a", protocol.UpdatePlayerInfo{NewSkin: &skin})
	assert.Equal(t, protocol.PlayerInfoUpdate{OldName: "Nellie", NewName: "Nellie", NewSkin: "7"}, recv(t, host))

	players := roomView(t, c, "ABCD").Players
	assert.Equal(t, room.Player{ConnID: "a", Name: "Nellie", SkinID: "7", Ready: true}, players[0])
}

func TestPlayerInfo_ResetReadyOnRename(t *testing.T) {
	c := newTestCoordinator(t, WithResetReadyOnRename(true))
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "Nell")
	recv(t, host)

	send(c, "a", protocol.ReadyStateChange{Ready: true})
	recv(t, host)
	recv(t, a)

	name := "Nellie"
	send(c, "a", protocol.UpdatePlayerInfo{NewNickname: &name})
	assert.Equal(t, protocol.PlayerInfoUpdate{OldName: "Nell", NewName: "Nellie", NewSkin: "1"}, recv(t, host))
	assert.Equal(t, protocol.ReadyStateUpdate{Name: "Nellie", Ready: false}, recv(t, host))
	assert.Equal(t, protocol.ReadyStateUpdate{Name: "Nellie", Ready: false}, recv(t, a))
	assert.False(t, roomView(t, c, "ABCD").Players[0].Ready)
}

func TestEvent_Relay(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	a := joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)
	b := joinRoom(t, c, "b", "ABCD", "B")
	recv(t, host)

	data := json.RawMessage(`{"card":7}`)
	send(c, "a", protocol.Event{Data: data})
	assert.Equal(t, protocol.Event{From: "A", Data: data}, recv(t, host))
	recvNone(t, b)

	send(c, "host", protocol.Event{From: "spoofed", Data: data})
	assert.Equal(t, protocol.Event{From: "host", Data: data}, recv(t, a))
	assert.Equal(t, protocol.Event{From: "host", Data: data}, recv(t, b))
	recvNone(t, host)
}

func TestDisconnect_ClosesOutbox(t *testing.T) {
	c := newTestCoordinator(t)
	out := connect(t, c, "x")
	c.Inbox() <- Disconnect{ConnID: "x"}
	state(t, c)

	_, ok := <-out
	assert.False(t, ok)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	c := newTestCoordinator(t)
	host := make(chan protocol.Message) // unbuffered, never read
	c.Inbox() <- Connect{ConnID: "host", Outbox: host}
	send(c, "host", protocol.CreateRoom{RoomCode: "ABCD"})

	assert.Equal(t, 0, state(t, c).NumConns)
	_, ok := <-host
	assert.False(t, ok)

	// the room lives until the transport reports the disconnect
	assert.True(t, roomView(t, c, "ABCD").Found)
	c.Inbox() <- Disconnect{ConnID: "host"}
	assert.False(t, roomView(t, c, "ABCD").Found)
}

func TestSuggestCode(t *testing.T) {
	c := newTestCoordinator(t, WithRand(rand.New(rand.NewSource(7))))
	reply := make(chan string, 1)
	c.Inbox() <- SuggestCode{Reply: reply}
	code := <-reply
	assert.True(t, room.ValidCode(code))
}

func TestRandomJoinLeave_NeverExceedsCapacity(t *testing.T) {
	c := newTestCoordinator(t)
	createRoom(t, c, "host", "ABCD")

	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("p%d", rng.Intn(8))
		if rng.Intn(2) == 0 {
			connect(t, c, id)
			send(c, id, protocol.JoinRoom{RoomCode: "ABCD", Name: id})
		} else {
			c.Inbox() <- Disconnect{ConnID: id}
		}
		n := len(roomView(t, c, "ABCD").Players)
		require.LessOrEqual(t, n, room.Capacity)
		require.GreaterOrEqual(t, n, 0)
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeRecorder) Record(e history.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) kinds() []history.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]history.Kind, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Kind)
	}
	return out
}

func TestRecorder_SeesLifecycle(t *testing.T) {
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, WithRecorder(rec))
	host := createRoom(t, c, "host", "ABCD")
	joinRoom(t, c, "a", "ABCD", "A")
	recv(t, host)
	send(c, "host", protocol.GameStart{})
	recv(t, host)
	c.Inbox() <- Disconnect{ConnID: "a"}
	c.Inbox() <- Disconnect{ConnID: "host"}
	state(t, c)

	assert.Equal(t, []history.Kind{
		history.KindRoomCreated,
		history.KindPlayerJoined,
		history.KindGameStarted,
		history.KindPlayerLeft,
		history.KindRoomClosed,
	}, rec.kinds())
}

func TestShutdown_ClosesEverything(t *testing.T) {
	c := newTestCoordinator(t)
	host := createRoom(t, c, "host", "ABCD")
	c.Inbox() <- Shutdown{}

	select {
	case <-c.Done():
	case <-time.After(within):
		t.Fatalf("coordinator did not stop")
	}
	_, ok := <-host
	assert.False(t, ok)
}

func TestDone_ClosesAfterOutboxesOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx)
	host := createRoom(t, c, "host", "ABCD")
	player := connect(t, c, "idle")
	require.Equal(t, 2, state(t, c).NumConns)

	cancel()
	select {
	case <-c.Done():
	case <-time.After(within):
		t.Fatalf("coordinator did not stop")
	}

	// Outboxes are already closed when Done fires.
	for _, ch := range []chan protocol.Message{host, player} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		default:
			t.Fatalf("outbox still open after Done")
		}
	}
}
