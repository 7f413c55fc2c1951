package orch

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/app"
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

const DeletedReason = "room was closed"

// CreateRoom is the entry point of the external HTTP surface.
func (o *Orchestrator) CreateRoom(spec domain.RoomSpec) (domain.RoomSnapshot, error) {
	return o.Rooms.Create(spec)
}

// Join admits sid into a room. The joiner gets the full snapshot once, the
// others get user-joined. A session moved out of another room is announced
// there as user-left.
func (o *Orchestrator) Join(sid domain.SessionID, req protocol.JoinRoom) {
	name, err := domain.NormalizeUsername(req.UserName)
	if err != nil {
		o.sendError(sid, err)
		return
	}

	var identity domain.IdentityID
	if info, ok := o.Registry.Get(sid); ok && info.Identity != nil {
		identity = info.Identity.ID
	}

	res, err := o.Rooms.Join(sid, req.RoomID, name, req.Password, identity)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room_id", string(req.RoomID)).Msg("join rejected")
		o.sendError(sid, err)
		return
	}

	if res.Left != nil && !res.Left.Deleted {
		o.broadcast(res.Left.Room, sid, protocol.UserLeft{UserID: sid})
	}
	o.Devices.UpdateRoom(sid, res.Room.ID, res.Room.Name)

	o.send(sid, protocol.JoinedRoom{Room: res.Room, User: res.User})
	o.broadcast(res.Room, sid, protocol.UserJoined{User: res.User})
}

// Leave takes sid out of its room; the connection stays open.
func (o *Orchestrator) Leave(sid domain.SessionID) {
	res, ok := o.Rooms.Leave(sid)
	if !ok {
		o.sendError(sid, domain.ErrNotInRoom)
		return
	}
	o.Devices.UpdateRoom(sid, "", "")
	o.send(sid, protocol.LeftRoom{RoomID: res.Room.ID})
	if !res.Deleted {
		o.broadcast(res.Room, sid, protocol.UserLeft{UserID: sid})
	}
}

// DeleteRoom closes a room from outside and evicts whoever is in it.
func (o *Orchestrator) DeleteRoom(id domain.RoomID) bool {
	room, evicted, ok := o.Rooms.Delete(id)
	if !ok {
		return false
	}
	o.evict(room, evicted, DeletedReason)
	return true
}

var _ app.LifecycleListener = (*Orchestrator)(nil)

func (o *Orchestrator) RoomExpiring(room domain.RoomSnapshot, remaining time.Duration) {
	msg := protocol.RoomExpiring{RoomID: room.ID, RemainingMs: remaining.Milliseconds()}
	if room.ExpiresAt != nil {
		msg.ExpiresAt = *room.ExpiresAt
	}
	o.broadcast(room, "", msg)
}

func (o *Orchestrator) RoomExpired(room domain.RoomSnapshot, evicted []domain.Participant) {
	o.broadcast(room, "", protocol.RoomExpired{RoomID: room.ID, Reason: app.ExpiredReason})
	o.evict(room, evicted, app.ExpiredReason)
}

func (o *Orchestrator) evict(room domain.RoomSnapshot, evicted []domain.Participant, reason string) {
	for _, p := range evicted {
		o.Devices.ClearRoom(p.ConnectionID, room.ID)
		o.send(p.ConnectionID, protocol.ForcedLeave{RoomID: room.ID, Reason: reason})
	}
	log.Info().
		Str("module", "orch").
		Str("room_id", string(room.ID)).
		Int("evicted", len(evicted)).
		Str("reason", reason).
		Msg("room closed")
}
