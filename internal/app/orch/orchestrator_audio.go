package orch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

// Audio deltas only ever touch the sender's own participant record and are
// rebroadcast to the rest of the room.

func (o *Orchestrator) SetAudioRouting(sid domain.SessionID, req protocol.SetAudioRouting) {
	p, room, err := o.Rooms.UpdateAudio(sid, func(a domain.AudioState) (domain.AudioState, error) {
		a.OutputDeviceID = req.OutputDeviceID
		return a, nil
	})
	if err != nil {
		o.sendError(sid, err)
		return
	}
	log.Debug().Str("module", "orch.audio").Str("sid", string(sid)).Str("device", req.OutputDeviceID).Msg("routing changed")
	o.broadcast(room, sid, protocol.AudioRoutingChanged{UserID: sid, OutputDeviceID: p.Audio.OutputDeviceID})
}

func (o *Orchestrator) SetSpatialPosition(sid domain.SessionID, req protocol.SetSpatialPosition) {
	p, room, err := o.Rooms.UpdateAudio(sid, func(a domain.AudioState) (domain.AudioState, error) {
		if !req.Position.Valid() {
			return a, fmt.Errorf("%w: position is not finite", domain.ErrInvalidAudio)
		}
		a.Position = req.Position
		return a, nil
	})
	if err != nil {
		o.sendError(sid, err)
		return
	}
	o.broadcast(room, sid, protocol.SpatialPositionChanged{UserID: sid, Position: p.Audio.Position})
}

func (o *Orchestrator) UpdateAudioSettings(sid domain.SessionID, req protocol.UpdateAudioSettings) {
	p, room, err := o.Rooms.UpdateAudio(sid, func(a domain.AudioState) (domain.AudioState, error) {
		return a.Merge(req.Settings)
	})
	if err != nil {
		o.sendError(sid, err)
		return
	}
	log.Debug().Str("module", "orch.audio").Str("sid", string(sid)).Bool("muted", p.Audio.Muted).Float64("volume", p.Audio.Volume).Msg("settings changed")
	o.broadcast(room, sid, protocol.AudioSettingsChanged{UserID: sid, AudioState: p.Audio})
}
