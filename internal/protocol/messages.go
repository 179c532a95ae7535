package protocol

import (
	"encoding/json"

	"github.com/DoyleJ11/second-law-lobby/internal/room"
)

// Participant -> coordinator
const (
	TypeCreateRoom       = "create-room"
	TypeJoinRoom         = "join-room"
	TypeReadyStateChange = "ready-state-change"
	TypeUpdatePlayerInfo = "update-player-info"
	TypeGameStart        = "gameStart"
	TypeGameState        = "gameState"
	TypeEvent            = "event"
	TypePing             = "ping"
	TypeLeaveRoom        = "leave-room"
)

// Coordinator -> participant(s). gameState and event reuse the inbound names.
const (
	TypeRoomCreated      = "roomCreated"
	TypeJoinSuccess      = "joinSuccess"
	TypeRoomError        = "roomError"
	TypePlayerJoined     = "playerJoined"
	TypePlayerLeft       = "playerLeft"
	TypeReadyStateUpdate = "ready-state-update"
	TypePlayerInfoUpdate = "player-info-update"
	TypeGameStarting     = "gameStarting"
	TypeRoomClosed       = "roomClosed"
	TypePong             = "pong"
)

// Message is anything that travels inside an Envelope.
type Message interface {
	MessageType() string
}

type CreateRoom struct {
	RoomCode string `json:"roomCode"`
	HostSkin string `json:"hostSkin"`
}

type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	SkinID   string `json:"skinId"`
}

type ReadyStateChange struct {
	Ready bool `json:"ready"`
}

// UpdatePlayerInfo fields are independently optional.
type UpdatePlayerInfo struct {
	NewNickname *string `json:"newNickname,omitempty"`
	NewSkin     *string `json:"newSkin,omitempty"`
}

type GameStart struct{}

// GameState carries the environment both ways: host -> coordinator and coordinator -> room.
type GameState struct {
	State *room.Environment `json:"state,omitempty"`
}

// Event is an opaque host/player relay. From is filled in by the coordinator.
type Event struct {
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Ping struct{}

type LeaveRoom struct{}

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
}

type JoinSuccess struct {
	RoomCode  string           `json:"roomCode"`
	HostSkin  string           `json:"hostSkin"`
	GameState room.Environment `json:"gameState"`
}

type RoomError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type PlayerJoined struct {
	Name   string `json:"name"`
	SkinID string `json:"skinId"`
	Ready  bool   `json:"ready"`
}

type PlayerLeft struct {
	Name string `json:"name"`
}

type ReadyStateUpdate struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type PlayerInfoUpdate struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
	NewSkin string `json:"newSkin"`
}

type GameStarting struct{}

type RoomClosed struct{}

type Pong struct{}

func (CreateRoom) MessageType() string       { return TypeCreateRoom }
func (JoinRoom) MessageType() string         { return TypeJoinRoom }
func (ReadyStateChange) MessageType() string { return TypeReadyStateChange }
func (UpdatePlayerInfo) MessageType() string { return TypeUpdatePlayerInfo }
func (GameStart) MessageType() string        { return TypeGameStart }
func (GameState) MessageType() string        { return TypeGameState }
func (Event) MessageType() string            { return TypeEvent }
func (Ping) MessageType() string             { return TypePing }
func (LeaveRoom) MessageType() string        { return TypeLeaveRoom }
func (RoomCreated) MessageType() string      { return TypeRoomCreated }
func (JoinSuccess) MessageType() string      { return TypeJoinSuccess }
func (RoomError) MessageType() string        { return TypeRoomError }
func (PlayerJoined) MessageType() string     { return TypePlayerJoined }
func (PlayerLeft) MessageType() string       { return TypePlayerLeft }
func (ReadyStateUpdate) MessageType() string { return TypeReadyStateUpdate }
func (PlayerInfoUpdate) MessageType() string { return TypePlayerInfoUpdate }
func (GameStarting) MessageType() string     { return TypeGameStarting }
func (RoomClosed) MessageType() string       { return TypeRoomClosed }
func (Pong) MessageType() string             { return TypePong }
