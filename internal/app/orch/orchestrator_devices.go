package orch

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

// RegisterSession records which device an identity is active on. When the
// identity now has a second connection, every older one gets
// multi-device-login and the new one gets multi-device-active. Nothing is
// ever disconnected here.
func (o *Orchestrator) RegisterSession(sid domain.SessionID, req protocol.RegisterSession) {
	info, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	identity, err := resolveIdentity(req.Identity, info.IdentityHint)
	if err != nil {
		log.Debug().Err(err).Str("module", "orch.devices").Str("sid", string(sid)).Msg("register-session ignored")
		return
	}
	o.Registry.SetIdentity(sid, &identity)

	device := req.Device
	if device.DeviceID == "" {
		device.DeviceID = defaultDeviceID(info.ClientToken)
	}
	room, _ := o.Rooms.RoomOf(sid)

	res := o.Devices.Register(identity.ID, sid, device, room)
	o.send(sid, protocol.SessionRegistered{Identity: identity, Device: res.Entry})
	if !res.Conflict {
		return
	}

	login := protocol.MultiDeviceLogin{NewDevice: res.Entry, Devices: res.Devices}
	for _, d := range res.Others {
		o.send(d.ConnectionID, login)
	}
	o.send(sid, protocol.MultiDeviceActive{Devices: res.Devices})
	log.Info().
		Str("module", "orch.devices").
		Str("identity", string(identity.ID)).
		Str("device_id", string(res.Entry.DeviceID)).
		Int("devices", len(res.Devices)).
		Msg("multi-device login")
}

func (o *Orchestrator) UnregisterSession(sid domain.SessionID) {
	if _, ok := o.Devices.Unregister(sid); ok {
		o.Registry.SetIdentity(sid, nil)
	}
}

// RelayCommand forwards a multi-device-command to another device of the
// sender's own identity. Unknown targets and unregistered senders are
// dropped without a reply.
func (o *Orchestrator) RelayCommand(sid domain.SessionID, cmd protocol.MultiDeviceCommand) {
	logger := log.With().
		Str("module", "orch.devices").
		Str("sid", string(sid)).
		Str("target", string(cmd.TargetDeviceID)).
		Str("action", string(cmd.Action)).
		Logger()

	if !cmd.Action.Valid() {
		logger.Warn().Msg("unknown command action")
		return
	}
	identity, from, ok := o.Devices.Lookup(sid)
	if !ok {
		logger.Debug().Err(domain.ErrIdentityUnavailable).Msg("command dropped")
		return
	}
	target, ok := o.Devices.FindDevice(identity, cmd.TargetDeviceID, sid)
	if !ok {
		logger.Debug().Err(domain.ErrTargetNotConnected).Msg("command dropped")
		return
	}

	out := protocol.MultiDeviceCommand{
		TargetDeviceID: cmd.TargetDeviceID,
		Action:         cmd.Action,
		FromDeviceID:   from.DeviceID,
		FromDeviceName: from.DeviceName,
	}
	o.send(target.ConnectionID, out)
	logger.Info().Str("to_sid", string(target.ConnectionID)).Msg("command relayed")
}

func resolveIdentity(claimed domain.Identity, hint *domain.Identity) (domain.Identity, error) {
	claimed.ID = domain.IdentityID(strings.TrimSpace(string(claimed.ID)))
	if claimed.ID != "" {
		return claimed, nil
	}
	if hint != nil && hint.ID != "" {
		return *hint, nil
	}
	return domain.Identity{}, domain.ErrIdentityUnavailable
}

// defaultDeviceID uses the browser's client token so that reconnects from
// the same browser keep their device id.
func defaultDeviceID(clientToken string) domain.DeviceID {
	if clientToken != "" {
		return domain.DeviceID(clientToken)
	}
	return domain.DeviceID(uuid.NewString())
}
