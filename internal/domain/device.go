package domain

import "time"

type DeviceID string

// DeviceInfo is what a client announces about itself in register-session.
type DeviceInfo struct {
	DeviceID     DeviceID `json:"deviceId"`
	DeviceName   string   `json:"deviceName"`
	LocationHint string   `json:"locationHint,omitempty"`
}

// DeviceRegistration pairs one identity with one live connection.
type DeviceRegistration struct {
	DeviceID        DeviceID  `json:"deviceId"`
	DeviceName      string    `json:"deviceName"`
	ConnectionID    SessionID `json:"connectionId"`
	CurrentRoomID   RoomID    `json:"currentRoomId,omitempty"`
	CurrentRoomName RoomName  `json:"currentRoomName,omitempty"`
	LocationHint    string    `json:"locationHint,omitempty"`
	RegisteredAt    time.Time `json:"registeredAt"`
}

// DeviceAction is the verb of a multi-device-command.
type DeviceAction string

const (
	ActionLeaveRoom    DeviceAction = "leave_room"
	ActionDisconnect   DeviceAction = "disconnect"
	ActionWarnFeedback DeviceAction = "warn_feedback"
)

func (a DeviceAction) Valid() bool {
	switch a {
	case ActionLeaveRoom, ActionDisconnect, ActionWarnFeedback:
		return true
	}
	return false
}
