package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/coordinator"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

const qrSize = 320

var errCoordinatorGone = errors.New("coordinator stopped")

// ask sends a query built around reply and waits for the answer.
func ask[T any](ctx context.Context, c *coordinator.Coordinator, build func(chan T) coordinator.Msg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	select {
	case c.Inbox() <- build(reply):
	case <-c.Done():
		return zero, errCoordinatorGone
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.Done():
		return zero, errCoordinatorGone
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type codeResponse struct {
	Code string `json:"code"`
}

type roomResponse struct {
	Code     string `json:"code"`
	HostSkin string `json:"hostSkin"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Open     bool   `json:"open"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// SuggestCode hands out a clean code no live room holds. The code is not
// reserved; create-room can still race for it.
func SuggestCode(c *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := ask(r.Context(), c, func(reply chan string) coordinator.Msg {
			return coordinator.SuggestCode{Reply: reply}
		})
		if err != nil {
			log.Warn("suggest code", zap.Error(err))
			http.Error(w, "failed to generate code", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, codeResponse{Code: code})
	}
}

func lookup(r *http.Request, c *coordinator.Coordinator) (coordinator.RoomView, error) {
	code := room.NormalizeCode(chi.URLParam(r, "code"))
	if !room.ValidCode(code) {
		return coordinator.RoomView{Code: code}, nil
	}
	return ask(r.Context(), c, func(reply chan coordinator.RoomView) coordinator.Msg {
		return coordinator.GetRoom{Code: code, Reply: reply}
	})
}

func GetRoom(c *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := lookup(r, c)
		if err != nil {
			log.Warn("get room", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if !v.Found {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{
			Code:     v.Code,
			HostSkin: v.HostSkin,
			Players:  len(v.Players),
			Capacity: room.Capacity,
			Open:     len(v.Players) < room.Capacity,
		})
	}
}

// RoomQR renders a PNG QR code of the join URL for a live room.
func RoomQR(c *coordinator.Coordinator, publicURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := lookup(r, c)
		if err != nil {
			log.Warn("room qr", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if !v.Found {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(JoinURL(r, publicURL, v.Code), qrcode.Medium, qrSize)
		if err != nil {
			log.Error("qr generation failed", zap.String("room", v.Code), zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// JoinURL is publicURL (or the request's own origin) with the room code
// as a query parameter.
func JoinURL(r *http.Request, publicURL, code string) string {
	base := publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host + "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("room", code)
	u.RawQuery = q.Encode()
	return u.String()
}
