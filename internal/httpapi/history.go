package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/history"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HistoryReader interface {
	Recent(ctx context.Context, code string, limit int) ([]history.Entry, error)
}

type historyEntry struct {
	Kind     history.Kind `json:"kind"`
	HostSkin string       `json:"hostSkin"`
	Players  int          `json:"players"`
	At       time.Time    `json:"at"`
}

// RoomHistory lists lifecycle entries for a code, newest first. Codes are
// reused, so entries may span several rooms.
func RoomHistory(h HistoryReader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := room.NormalizeCode(chi.URLParam(r, "code"))
		if !room.ValidCode(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		entries, err := h.Recent(r.Context(), code, limit)
		if err != nil {
			log.Error("history lookup", zap.String("room", code), zap.Error(err))
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		out := make([]historyEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyEntry{Kind: e.Kind, HostSkin: e.HostSkin, Players: e.Players, At: e.At})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
