// Package domain contains entities and their invariants, no transport.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen = 36
	MaxRoomNameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type IdentityID string

// Identity is an authenticated account. One identity may hold several
// concurrent device registrations.
type Identity struct {
	ID   IdentityID `json:"id"`
	Name string     `json:"name,omitempty"`
}

// NormalizeUsername trims and validates a display name.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}
