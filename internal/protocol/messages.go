package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/VoiceHub/internal/domain"
)

type JoinRoom struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserName string        `json:"userName"`
	Password string        `json:"password,omitempty"`
}

type LeaveRoom struct{}

type SetAudioRouting struct {
	OutputDeviceID string `json:"outputDeviceId"`
}

type SetSpatialPosition struct {
	Position domain.Position `json:"position"`
}

type UpdateAudioSettings struct {
	Settings domain.AudioSettings `json:"settings"`
}

// RegisterSession binds an identity to the connection. An empty identity
// falls back to the one stored in the HTTP session at connect time.
type RegisterSession struct {
	Identity domain.Identity   `json:"identity"`
	Device   domain.DeviceInfo `json:"device"`
}

type UnregisterSession struct{}

type Ping struct{}

type WhoAmI struct{}

type Connected struct {
	UserID domain.SessionID `json:"userId"`
}

type JoinedRoom struct {
	Room domain.RoomSnapshot `json:"room"`
	User domain.Participant  `json:"user"`
}

type LeftRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

type UserJoined struct {
	User domain.Participant `json:"user"`
}

type UserLeft struct {
	UserID domain.SessionID `json:"userId"`
}

type AudioRoutingChanged struct {
	UserID         domain.SessionID `json:"userId"`
	OutputDeviceID string           `json:"outputDeviceId"`
}

type SpatialPositionChanged struct {
	UserID   domain.SessionID `json:"userId"`
	Position domain.Position  `json:"position"`
}

type AudioSettingsChanged struct {
	UserID     domain.SessionID  `json:"userId"`
	AudioState domain.AudioState `json:"audioState"`
}

type RoomExpiring struct {
	RoomID      domain.RoomID `json:"roomId"`
	RemainingMs int64         `json:"remainingMs"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

type RoomExpired struct {
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason"`
}

type ForcedLeave struct {
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason"`
}

type SessionRegistered struct {
	Identity domain.Identity           `json:"identity"`
	Device   domain.DeviceRegistration `json:"device"`
}

type MultiDeviceLogin struct {
	NewDevice domain.DeviceRegistration   `json:"newDevice"`
	Devices   []domain.DeviceRegistration `json:"devices"`
}

type MultiDeviceActive struct {
	Devices []domain.DeviceRegistration `json:"devices"`
}

type Pong struct{}

type WhoAmIResult struct {
	UserID   domain.SessionID `json:"userId"`
	Identity *domain.Identity `json:"identity,omitempty"`
	RoomID   domain.RoomID    `json:"roomId,omitempty"`
	RoomName domain.RoomName  `json:"roomName,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}

// Signal carries an opaque offer, answer or ICE candidate. Clients set
// TargetUserID; the relay replaces it with FromUserID on delivery.
type Signal struct {
	Kind         Type             `json:"-"`
	TargetUserID domain.SessionID `json:"targetUserId,omitempty"`
	FromUserID   domain.SessionID `json:"fromUserId,omitempty"`
	Payload      json.RawMessage  `json:"payload"`
}

// MultiDeviceCommand is sent by a device with TargetDeviceID and delivered
// to the target with the sender's device fields filled in.
type MultiDeviceCommand struct {
	TargetDeviceID domain.DeviceID     `json:"targetDeviceId"`
	Action         domain.DeviceAction `json:"action"`
	FromDeviceID   domain.DeviceID     `json:"fromDeviceId,omitempty"`
	FromDeviceName string              `json:"fromDeviceName,omitempty"`
}

func (JoinRoom) MessageType() Type            { return TypeJoinRoom }
func (LeaveRoom) MessageType() Type           { return TypeLeaveRoom }
func (SetAudioRouting) MessageType() Type     { return TypeSetAudioRouting }
func (SetSpatialPosition) MessageType() Type  { return TypeSetSpatialPos }
func (UpdateAudioSettings) MessageType() Type { return TypeUpdateAudio }
func (RegisterSession) MessageType() Type     { return TypeRegisterSession }
func (UnregisterSession) MessageType() Type   { return TypeUnregisterSession }
func (Ping) MessageType() Type                { return TypePing }
func (WhoAmI) MessageType() Type              { return TypeWhoAmI }

func (Connected) MessageType() Type              { return TypeConnected }
func (JoinedRoom) MessageType() Type             { return TypeJoinedRoom }
func (LeftRoom) MessageType() Type               { return TypeLeftRoom }
func (UserJoined) MessageType() Type             { return TypeUserJoined }
func (UserLeft) MessageType() Type               { return TypeUserLeft }
func (AudioRoutingChanged) MessageType() Type    { return TypeAudioRoutingChange }
func (SpatialPositionChanged) MessageType() Type { return TypeSpatialPosChange }
func (AudioSettingsChanged) MessageType() Type   { return TypeAudioSettingsChange }
func (RoomExpiring) MessageType() Type           { return TypeRoomExpiring }
func (RoomExpired) MessageType() Type            { return TypeRoomExpired }
func (ForcedLeave) MessageType() Type            { return TypeForcedLeave }
func (SessionRegistered) MessageType() Type      { return TypeSessionRegistered }
func (MultiDeviceLogin) MessageType() Type       { return TypeMultiDeviceLogin }
func (MultiDeviceActive) MessageType() Type      { return TypeMultiDeviceActive }
func (Pong) MessageType() Type                   { return TypePong }
func (WhoAmIResult) MessageType() Type           { return TypeWhoAmIResult }
func (Error) MessageType() Type                  { return TypeError }
func (MultiDeviceCommand) MessageType() Type     { return TypeMultiDeviceCmd }

func (s Signal) MessageType() Type { return s.Kind }

// IsSignalKind reports whether t is one of the relayed call-setup kinds.
func IsSignalKind(t Type) bool {
	switch t {
	case TypeWebRTCOffer, TypeWebRTCAnswer, TypeICECandidate:
		return true
	}
	return false
}
