package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/app"
	"github.com/dkeye/VoiceHub/internal/core"
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Devices  *app.DeviceRegistry
	Policy   app.Policy

	// RequireSameRoom makes the signaling relay drop messages whose sender
	// and target are not participants of one room.
	RequireSameRoom bool
}

// Connect binds a fresh connection and greets it with its session id.
func (o *Orchestrator) Connect(sid domain.SessionID, conn core.SignalConnection, opts app.BindOptions) {
	o.Registry.Bind(sid, conn, opts)
	o.send(sid, protocol.Connected{UserID: sid})
}

// Dispatch is the single decision point for inbound messages of one
// connection. Callers invoke it from the connection's read loop, so
// messages of one connection are handled in the order they were sent.
func (o *Orchestrator) Dispatch(sid domain.SessionID, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.JoinRoom:
		o.Join(sid, m)
	case protocol.LeaveRoom:
		o.Leave(sid)
	case protocol.Signal:
		o.Relay(sid, m)
	case protocol.SetAudioRouting:
		o.SetAudioRouting(sid, m)
	case protocol.SetSpatialPosition:
		o.SetSpatialPosition(sid, m)
	case protocol.UpdateAudioSettings:
		o.UpdateAudioSettings(sid, m)
	case protocol.RegisterSession:
		o.RegisterSession(sid, m)
	case protocol.UnregisterSession:
		o.UnregisterSession(sid)
	case protocol.MultiDeviceCommand:
		o.RelayCommand(sid, m)
	case protocol.Ping:
		o.send(sid, protocol.Pong{})
	case protocol.WhoAmI:
		o.WhoAmI(sid)
	default:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("type", string(msg.MessageType())).Msg("unexpected message from client")
	}
}

// Disconnect removes every trace of sid: room membership, device entry and
// the session itself. Repeated calls are no-ops.
func (o *Orchestrator) Disconnect(sid domain.SessionID) {
	if res, ok := o.Rooms.Leave(sid); ok && !res.Deleted {
		o.broadcast(res.Room, sid, protocol.UserLeft{UserID: sid})
	}
	o.Devices.Unregister(sid)
	if o.Registry.Unbind(sid) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
	}
}

func (o *Orchestrator) WhoAmI(sid domain.SessionID) {
	info, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	resp := protocol.WhoAmIResult{UserID: sid, Identity: info.Identity}
	if room, ok := o.Rooms.RoomOf(sid); ok {
		resp.RoomID = room.ID
		resp.RoomName = room.Name
	}
	o.send(sid, resp)
}

func (o *Orchestrator) sendError(sid domain.SessionID, err error) {
	o.send(sid, protocol.Error{Message: errorMessage(err)})
}

// errorMessage maps the taxonomy to what a user is shown.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, domain.ErrInvalidPassword):
		return "Invalid password"
	case errors.Is(err, domain.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return "You are already in this room"
	case errors.Is(err, domain.ErrNotInRoom):
		return "You are not in a room"
	case errors.Is(err, domain.ErrUsernameEmpty):
		return "User name is required"
	case errors.Is(err, domain.ErrUsernameTooLong):
		return "User name is too long"
	case errors.Is(err, domain.ErrInvalidAudio):
		return "Invalid audio state"
	}
	return err.Error()
}

func (o *Orchestrator) send(sid domain.SessionID, m protocol.Message) {
	frame, err := protocol.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal")
		return
	}
	o.deliver(sid, m.MessageType(), frame)
}

// broadcast sends m to every participant of room except the given session.
// The frame is encoded once.
func (o *Orchestrator) broadcast(room domain.RoomSnapshot, except domain.SessionID, m protocol.Message) {
	frame, err := protocol.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal")
		return
	}
	for _, p := range room.Participants {
		if p.ConnectionID == except {
			continue
		}
		o.deliver(p.ConnectionID, m.MessageType(), frame)
	}
}

// deliver is best effort: an unknown target is dropped, a full queue is
// handed to the backpressure policy.
func (o *Orchestrator) deliver(sid domain.SessionID, typ protocol.Type, frame core.Frame) bool {
	conn, ok := o.Registry.Signal(sid)
	if !ok {
		return false
	}
	err := conn.TrySend(frame)
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) || o.Policy == nil {
		return false
	}
	switch o.Policy.OnBackPressure(sid, typ) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("type", string(typ)).Msg("slow consumer, kicking")
		o.Registry.Cancel(sid)
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", string(typ)).Msg("frame dropped")
	}
	return false
}
