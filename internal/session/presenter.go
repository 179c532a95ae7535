package session

import (
	"time"

	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

// Presenter is the UI/audio side of a participant. Calls arrive on the
// mirror goroutine, in order, and must not call back into the Mirror.
type Presenter interface {
	RosterChanged(players []Player)
	EnvironmentChanged(env room.Environment)
	CountdownTick(n int)
	Announce(text string)
	CountdownCancelled()
	GameStarted()
	// FadeAmbient ramps background audio to volume over d.
	FadeAmbient(volume float64, d time.Duration)
	// RoomClosed asks the UI to offer room creation/joining again.
	RoomClosed()
	ShowError(code, message string)
}

// Starter sends the authoritative game-start trigger over the transport.
type Starter interface {
	SendGameStart() error
}

// NopPresenter ignores every call. Embed it to implement part of Presenter.
type NopPresenter struct{}

func (NopPresenter) RosterChanged([]Player) {}
func (NopPresenter) EnvironmentChanged(room.Environment) {}
func (NopPresenter) CountdownTick(int) {}
func (NopPresenter) Announce(string) {}
func (NopPresenter) CountdownCancelled() {}
func (NopPresenter) GameStarted() {}
func (NopPresenter) FadeAmbient(float64, time.Duration) {}
func (NopPresenter) RoomClosed() {}
func (NopPresenter) ShowError(string, string) {}

// StarterFunc adapts a plain function to Starter.
type StarterFunc func() error

func (f StarterFunc) SendGameStart() error { return f() }
