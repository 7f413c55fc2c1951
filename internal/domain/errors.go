package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrRoomFull        = errors.New("room is full")
	ErrInvalidSpec     = errors.New("invalid room parameters")
	ErrRoomExists      = errors.New("room already exists")
	ErrAlreadyInRoom   = errors.New("already in this room")
	ErrNotInRoom       = errors.New("not in a room")
	ErrInvalidAudio    = errors.New("invalid audio state")

	// ErrTargetNotConnected is never surfaced to a sender; relays drop on it.
	ErrTargetNotConnected = errors.New("target not connected")
	// ErrIdentityUnavailable means register-session carried no usable credential.
	ErrIdentityUnavailable = errors.New("identity unavailable")
)
