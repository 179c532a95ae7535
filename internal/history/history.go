// Package history keeps an audit trail of room lifecycle events. It never
// stores live room state; rooms still die with the process.
package history

import (
	"context"
	"time"
)

type Kind string

const (
	KindRoomCreated  Kind = "room_created"
	KindRoomClosed   Kind = "room_closed"
	KindPlayerJoined Kind = "player_joined"
	KindPlayerLeft   Kind = "player_left"
	KindGameStarted  Kind = "game_started"
)

type Entry struct {
	RoomCode string
	Kind     Kind
	HostSkin string
	Players  int
	At       time.Time
}

// Store persists entries.
type Store interface {
	Save(ctx context.Context, e Entry) error
}
