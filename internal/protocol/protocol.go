// Package protocol is the JSON wire contract between the coordinator and its
// clients. Every frame is a single object whose "type" field names the
// message; the remaining fields belong to the message.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	// client -> server
	TypeJoinRoom          Type = "join-room"
	TypeLeaveRoom         Type = "leave-room"
	TypeSetAudioRouting   Type = "set-audio-routing"
	TypeSetSpatialPos     Type = "set-spatial-position"
	TypeUpdateAudio       Type = "update-audio-settings"
	TypeRegisterSession   Type = "register-session"
	TypeUnregisterSession Type = "unregister-session"
	TypePing              Type = "ping"
	TypeWhoAmI            Type = "whoami"

	// server -> client
	TypeConnected           Type = "connected"
	TypeJoinedRoom          Type = "joined-room"
	TypeLeftRoom            Type = "left-room"
	TypeUserJoined          Type = "user-joined"
	TypeUserLeft            Type = "user-left"
	TypeAudioRoutingChange  Type = "audio-routing-changed"
	TypeSpatialPosChange    Type = "spatial-position-changed"
	TypeAudioSettingsChange Type = "audio-settings-changed"
	TypeRoomExpiring        Type = "room-expiring"
	TypeRoomExpired         Type = "room-expired"
	TypeForcedLeave         Type = "forced-leave"
	TypeSessionRegistered   Type = "session-registered"
	TypeMultiDeviceLogin    Type = "multi-device-login"
	TypeMultiDeviceActive   Type = "multi-device-active"
	TypePong                Type = "pong"
	TypeWhoAmIResult        Type = "whoami-result"
	TypeError               Type = "error"

	// both directions
	TypeWebRTCOffer    Type = "webrtc-offer"
	TypeWebRTCAnswer   Type = "webrtc-answer"
	TypeICECandidate   Type = "webrtc-ice-candidate"
	TypeMultiDeviceCmd Type = "multi-device-command"
)

var (
	ErrBadFrame    = errors.New("protocol: bad frame")
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Message is implemented by every frame body.
type Message interface {
	MessageType() Type
}

type envelope struct {
	Type Type `json:"type"`
}

// Marshal encodes m with its "type" field first.
func Marshal(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", m.MessageType(), err)
	}
	head, _ := json.Marshal(string(m.MessageType()))

	var buf bytes.Buffer
	buf.Grow(len(body) + len(head) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(head)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses one frame into its typed message value.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	decode, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	m, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadFrame, env.Type, err)
	}
	if s, ok := m.(Signal); ok {
		s.Kind = env.Type
		m = s
	}
	return m, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var registry = map[Type]func([]byte) (Message, error){
	TypeJoinRoom:          decodeAs[JoinRoom],
	TypeLeaveRoom:         decodeAs[LeaveRoom],
	TypeSetAudioRouting:   decodeAs[SetAudioRouting],
	TypeSetSpatialPos:     decodeAs[SetSpatialPosition],
	TypeUpdateAudio:       decodeAs[UpdateAudioSettings],
	TypeRegisterSession:   decodeAs[RegisterSession],
	TypeUnregisterSession: decodeAs[UnregisterSession],
	TypePing:              decodeAs[Ping],
	TypeWhoAmI:            decodeAs[WhoAmI],

	TypeConnected:           decodeAs[Connected],
	TypeJoinedRoom:          decodeAs[JoinedRoom],
	TypeLeftRoom:            decodeAs[LeftRoom],
	TypeUserJoined:          decodeAs[UserJoined],
	TypeUserLeft:            decodeAs[UserLeft],
	TypeAudioRoutingChange:  decodeAs[AudioRoutingChanged],
	TypeSpatialPosChange:    decodeAs[SpatialPositionChanged],
	TypeAudioSettingsChange: decodeAs[AudioSettingsChanged],
	TypeRoomExpiring:        decodeAs[RoomExpiring],
	TypeRoomExpired:         decodeAs[RoomExpired],
	TypeForcedLeave:         decodeAs[ForcedLeave],
	TypeSessionRegistered:   decodeAs[SessionRegistered],
	TypeMultiDeviceLogin:    decodeAs[MultiDeviceLogin],
	TypeMultiDeviceActive:   decodeAs[MultiDeviceActive],
	TypePong:                decodeAs[Pong],
	TypeWhoAmIResult:        decodeAs[WhoAmIResult],
	TypeError:               decodeAs[Error],

	TypeWebRTCOffer:    decodeAs[Signal],
	TypeWebRTCAnswer:   decodeAs[Signal],
	TypeICECandidate:   decodeAs[Signal],
	TypeMultiDeviceCmd: decodeAs[MultiDeviceCommand],
}
