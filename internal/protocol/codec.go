package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

var ErrBadJSON = errors.New("bad json")
var ErrUnknownType = errors.New("unknown type")

// Envelope is the frame every websocket text message uses.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var inbound = map[string]func() Message{
	TypeCreateRoom:       func() Message { return &CreateRoom{} },
	TypeJoinRoom:         func() Message { return &JoinRoom{} },
	TypeReadyStateChange: func() Message { return &ReadyStateChange{} },
	TypeUpdatePlayerInfo: func() Message { return &UpdatePlayerInfo{} },
	TypeGameStart:        func() Message { return &GameStart{} },
	TypeGameState:        func() Message { return &GameState{} },
	TypeEvent:            func() Message { return &Event{} },
	TypePing:             func() Message { return &Ping{} },
	TypeLeaveRoom:        func() Message { return &LeaveRoom{} },
}

var outbound = map[string]func() Message{
	TypeRoomCreated:      func() Message { return &RoomCreated{} },
	TypeJoinSuccess:      func() Message { return &JoinSuccess{} },
	TypeRoomError:        func() Message { return &RoomError{} },
	TypePlayerJoined:     func() Message { return &PlayerJoined{} },
	TypePlayerLeft:       func() Message { return &PlayerLeft{} },
	TypeReadyStateUpdate: func() Message { return &ReadyStateUpdate{} },
	TypePlayerInfoUpdate: func() Message { return &PlayerInfoUpdate{} },
	TypeGameStarting:     func() Message { return &GameStarting{} },
	TypeGameState:        func() Message { return &GameState{} },
	TypeRoomClosed:       func() Message { return &RoomClosed{} },
	TypePong:             func() Message { return &Pong{} },
	TypeEvent:            func() Message { return &Event{} },
}

func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	return json.Marshal(Envelope{Type: m.MessageType(), Payload: payload})
}

// DecodeInbound parses a participant -> coordinator frame. The returned
// Message is a value, not a pointer.
func DecodeInbound(data []byte) (Message, error) {
	return decode(data, inbound)
}

// DecodeOutbound parses a coordinator -> participant frame.
func DecodeOutbound(data []byte) (Message, error) {
	return decode(data, outbound)
}

func decode(data []byte, table map[string]func() Message) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	mk, ok := table[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	m := mk()
	if env.Type == TypeEvent {
		// events relay arbitrary JSON; keep the whole payload as Data
		ev := m.(*Event)
		if err := json.Unmarshal(env.Payload, ev); err != nil || ev.Data == nil {
			ev.Data = append(json.RawMessage(nil), env.Payload...)
		}
		return *ev, nil
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadJSON, env.Type, err)
		}
	}
	return deref(m), nil
}

func deref(m Message) Message {
	switch v := m.(type) {
	case *CreateRoom:
		return *v
	case *JoinRoom:
		return *v
	case *ReadyStateChange:
		return *v
	case *UpdatePlayerInfo:
		return *v
	case *GameStart:
		return *v
	case *GameState:
		return *v
	case *Ping:
		return *v
	case *LeaveRoom:
		return *v
	case *RoomCreated:
		return *v
	case *JoinSuccess:
		return *v
	case *RoomError:
		return *v
	case *PlayerJoined:
		return *v
	case *PlayerLeft:
		return *v
	case *ReadyStateUpdate:
		return *v
	case *PlayerInfoUpdate:
		return *v
	case *GameStarting:
		return *v
	case *RoomClosed:
		return *v
	case *Pong:
		return *v
	}
	return m
}

// ErrorCode maps coordinator errors to the wire code carried by roomError.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrDuplicateRoom):
		return "DuplicateRoom"
	case errors.Is(err, room.ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, room.ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, room.ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, room.ErrAlreadyInRoom):
		return "AlreadyInRoom"
	case errors.Is(err, room.ErrMalformedPayload), errors.Is(err, ErrBadJSON):
		return "MalformedPayload"
	case errors.Is(err, ErrUnknownType):
		return "UnknownType"
	}
	return "Internal"
}

// ErrorMessage builds the roomError a connection receives for err.
func ErrorMessage(err error) RoomError {
	var msg string
	switch {
	case errors.Is(err, room.ErrDuplicateRoom):
		msg = "A room with that code already exists"
	case errors.Is(err, room.ErrRoomNotFound):
		msg = "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		msg = "Room is full"
	case errors.Is(err, room.ErrNotAuthorized):
		msg = "Only the host can do that"
	case errors.Is(err, room.ErrAlreadyInRoom):
		msg = "Already in a room"
	default:
		msg = err.Error()
	}
	return RoomError{Message: msg, Code: ErrorCode(err)}
}
