package orch

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

// Relay forwards an offer, answer or ICE candidate to its target with the
// payload bytes untouched. Delivery failures are not reported to the sender.
func (o *Orchestrator) Relay(sid domain.SessionID, sig protocol.Signal) {
	if !protocol.IsSignalKind(sig.Kind) || sig.TargetUserID == "" || sig.TargetUserID == sid {
		return
	}
	logger := log.With().
		Str("module", "orch.signal").
		Str("type", string(sig.Kind)).
		Str("from", string(sid)).
		Str("to", string(sig.TargetUserID)).
		Logger()

	if o.RequireSameRoom && !o.Rooms.SameRoom(sid, sig.TargetUserID) {
		logger.Debug().Msg("dropped: peers not in one room")
		return
	}

	out := protocol.Signal{Kind: sig.Kind, FromUserID: sid, Payload: sig.Payload}
	if !o.deliverRelay(sig.TargetUserID, out) {
		logger.Debug().Err(domain.ErrTargetNotConnected).Msg("dropped")
		return
	}
	logger.Debug().Str("detail", describePayload(sig)).Msg("relayed")
}

func (o *Orchestrator) deliverRelay(target domain.SessionID, sig protocol.Signal) bool {
	frame, err := protocol.Marshal(sig)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.signal").Msg("marshal")
		return false
	}
	return o.deliver(target, sig.Kind, frame)
}

// describePayload is for debug logs only; the relay never rejects a payload
// it cannot parse.
func describePayload(sig protocol.Signal) string {
	switch sig.Kind {
	case protocol.TypeWebRTCOffer, protocol.TypeWebRTCAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &sd); err != nil {
			return "opaque"
		}
		return sd.Type.String()
	case protocol.TypeICECandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Payload, &ci); err != nil || ci.Candidate == "" {
			return "opaque"
		}
		if ci.SDPMid != nil {
			return "candidate mid=" + *ci.SDPMid
		}
		return "candidate"
	}
	return ""
}
