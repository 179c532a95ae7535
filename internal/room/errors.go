package room

import "errors"

var ErrDuplicateRoom = errors.New("room already exists")
var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrNotAuthorized = errors.New("only the host can do that")
var ErrMalformedPayload = errors.New("malformed payload")
var ErrAlreadyInRoom = errors.New("connection already belongs to a room")
