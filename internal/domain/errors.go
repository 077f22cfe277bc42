package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidRepeatMode  = errors.New("invalid repeat mode")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrIndexOutOfRange    = errors.New("playlist index out of range")
)
