package session

import (
	"github.com/DoyleJ11/second-law-lobby/internal/protocol"
	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

// Event is one room lifecycle notification observed by a participant.
type Event interface{ isSessionEvent() }

type RoomCreated struct{ RoomCode string }

type JoinSucceeded struct {
	RoomCode    string
	HostSkin    string
	Environment room.Environment
}

type PlayerJoined struct {
	Name   string
	SkinID string
	Ready  bool
}

type PlayerLeft struct{ Name string }

type ReadyChanged struct {
	Name  string
	Ready bool
}

type InfoChanged struct {
	OldName string
	NewName string
	NewSkin string
}

type EnvironmentChanged struct{ Environment room.Environment }

type GameStarting struct{}

type RoomClosed struct{}

type ErrorReceived struct {
	Code    string
	Message string
}

func (RoomCreated) isSessionEvent()        {}
func (JoinSucceeded) isSessionEvent()      {}
func (PlayerJoined) isSessionEvent()       {}
func (PlayerLeft) isSessionEvent()         {}
func (ReadyChanged) isSessionEvent()       {}
func (InfoChanged) isSessionEvent()        {}
func (EnvironmentChanged) isSessionEvent() {}
func (GameStarting) isSessionEvent()       {}
func (RoomClosed) isSessionEvent()         {}
func (ErrorReceived) isSessionEvent()      {}

// FromMessage maps a coordinator message to the event it represents.
// Pong and relayed events carry no roster meaning and report false.
func FromMessage(m protocol.Message) (Event, bool) {
	switch msg := m.(type) {
	case protocol.RoomCreated:
		return RoomCreated{RoomCode: msg.RoomCode}, true
	case protocol.JoinSuccess:
		return JoinSucceeded{RoomCode: msg.RoomCode, HostSkin: msg.HostSkin, Environment: msg.GameState}, true
	case protocol.PlayerJoined:
		return PlayerJoined{Name: msg.Name, SkinID: msg.SkinID, Ready: msg.Ready}, true
	case protocol.PlayerLeft:
		return PlayerLeft{Name: msg.Name}, true
	case protocol.ReadyStateUpdate:
		return ReadyChanged{Name: msg.Name, Ready: msg.Ready}, true
	case protocol.PlayerInfoUpdate:
		return InfoChanged{OldName: msg.OldName, NewName: msg.NewName, NewSkin: msg.NewSkin}, true
	case protocol.GameState:
		env := room.DefaultEnvironment()
		if msg.State != nil {
			env = msg.State.WithDefaults()
		}
		return EnvironmentChanged{Environment: env}, true
	case protocol.GameStarting:
		return GameStarting{}, true
	case protocol.RoomClosed:
		return RoomClosed{}, true
	case protocol.RoomError:
		return ErrorReceived{Code: msg.Code, Message: msg.Message}, true
	}
	return nil, false
}
