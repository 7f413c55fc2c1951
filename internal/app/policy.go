package app

import (
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a session whose outbound queue is full.
type Policy interface {
	OnBackPressure(sid domain.SessionID, msg protocol.Type) BackpressureAction
}

// SimplePolicy drops relayed call-setup and audio deltas, which the peer
// will resend or supersede, and kicks the session for anything else since
// it would otherwise miss room state.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.SessionID, msg protocol.Type) BackpressureAction {
	switch msg {
	case protocol.TypeWebRTCOffer, protocol.TypeWebRTCAnswer, protocol.TypeICECandidate,
		protocol.TypeSpatialPosChange:
		return DropFrame
	}
	return KickMember
}
