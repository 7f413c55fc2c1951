package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/clock"
	"github.com/dkeye/VoiceHub/internal/domain"
)

// DeviceRegistry tracks which connections each identity is active on. It
// never blocks a registration; it only reports conflicts.
type DeviceRegistry struct {
	mu         sync.RWMutex
	clock      clock.Clock
	byIdentity map[domain.IdentityID][]domain.DeviceRegistration
	bySID      map[domain.SessionID]domain.IdentityID
}

func NewDeviceRegistry(clk clock.Clock) *DeviceRegistry {
	if clk == nil {
		clk = clock.Real()
	}
	return &DeviceRegistry{
		clock:      clk,
		byIdentity: make(map[domain.IdentityID][]domain.DeviceRegistration),
		bySID:      make(map[domain.SessionID]domain.IdentityID),
	}
}

// RegisterResult reports the registry state after Register. Conflict is set
// when a new entry made the identity active on two or more connections;
// Others then lists every entry except the new one.
type RegisterResult struct {
	Entry    domain.DeviceRegistration
	Devices  []domain.DeviceRegistration
	Others   []domain.DeviceRegistration
	Replaced bool
	Conflict bool
}

func (r *DeviceRegistry) Register(
	identity domain.IdentityID,
	sid domain.SessionID,
	info domain.DeviceInfo,
	room domain.RoomSnapshot,
) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.bySID[sid]; ok && prev != identity {
		r.removeLocked(prev, sid)
	}

	entry := domain.DeviceRegistration{
		DeviceID:        info.DeviceID,
		DeviceName:      info.DeviceName,
		ConnectionID:    sid,
		CurrentRoomID:   room.ID,
		CurrentRoomName: room.Name,
		LocationHint:    info.LocationHint,
		RegisteredAt:    r.clock.Now(),
	}

	res := RegisterResult{Entry: entry}
	list := r.byIdentity[identity]
	for i := range list {
		if list[i].ConnectionID == sid {
			list[i] = entry
			res.Replaced = true
			break
		}
	}
	if !res.Replaced {
		list = append(list, entry)
	}
	r.byIdentity[identity] = list
	r.bySID[sid] = identity

	res.Devices = cloneDevices(list)
	if !res.Replaced && len(list) >= 2 {
		res.Conflict = true
		for _, d := range list {
			if d.ConnectionID != sid {
				res.Others = append(res.Others, d)
			}
		}
	}

	log.Info().
		Str("module", "app.devices").
		Str("identity", string(identity)).
		Str("sid", string(sid)).
		Str("device_id", string(info.DeviceID)).
		Int("devices", len(list)).
		Bool("conflict", res.Conflict).
		Msg("device registered")
	return res
}

// Unregister removes the entry for sid. It is idempotent.
func (r *DeviceRegistry) Unregister(sid domain.SessionID) (domain.IdentityID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	r.removeLocked(identity, sid)
	log.Info().
		Str("module", "app.devices").
		Str("identity", string(identity)).
		Str("sid", string(sid)).
		Msg("device unregistered")
	return identity, true
}

func (r *DeviceRegistry) removeLocked(identity domain.IdentityID, sid domain.SessionID) {
	delete(r.bySID, sid)
	list := r.byIdentity[identity]
	out := list[:0]
	for _, d := range list {
		if d.ConnectionID != sid {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		delete(r.byIdentity, identity)
		return
	}
	r.byIdentity[identity] = out
}

// UpdateRoom mirrors a session's room change into its device entry.
func (r *DeviceRegistry) UpdateRoom(sid domain.SessionID, roomID domain.RoomID, name domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.bySID[sid]
	if !ok {
		return
	}
	list := r.byIdentity[identity]
	for i := range list {
		if list[i].ConnectionID == sid {
			list[i].CurrentRoomID = roomID
			list[i].CurrentRoomName = name
			return
		}
	}
}

// ClearRoom empties the room fields of sid's entry, but only while they
// still name roomID. A join that landed in between is left alone.
func (r *DeviceRegistry) ClearRoom(sid domain.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.bySID[sid]
	if !ok {
		return false
	}
	list := r.byIdentity[identity]
	for i := range list {
		if list[i].ConnectionID == sid && list[i].CurrentRoomID == roomID {
			list[i].CurrentRoomID = ""
			list[i].CurrentRoomName = ""
			return true
		}
	}
	return false
}

func (r *DeviceRegistry) Devices(identity domain.IdentityID) []domain.DeviceRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDevices(r.byIdentity[identity])
}

// Lookup returns the entry of sid and the identity it is registered under.
func (r *DeviceRegistry) Lookup(sid domain.SessionID) (domain.IdentityID, domain.DeviceRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.bySID[sid]
	if !ok {
		return "", domain.DeviceRegistration{}, false
	}
	for _, d := range r.byIdentity[identity] {
		if d.ConnectionID == sid {
			return identity, d, true
		}
	}
	return "", domain.DeviceRegistration{}, false
}

// FindDevice returns the newest entry of identity with the given device id
// that does not belong to the except connection.
func (r *DeviceRegistry) FindDevice(identity domain.IdentityID, deviceID domain.DeviceID, except domain.SessionID) (domain.DeviceRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byIdentity[identity]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].DeviceID == deviceID && list[i].ConnectionID != except {
			return list[i], true
		}
	}
	return domain.DeviceRegistration{}, false
}

func cloneDevices(in []domain.DeviceRegistration) []domain.DeviceRegistration {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.DeviceRegistration, len(in))
	copy(out, in)
	return out
}
