package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/clock"
	"github.com/dkeye/VoiceHub/internal/domain"
)

type LifecycleState int

const (
	LifecycleActive LifecycleState = iota
	LifecycleWarning
	LifecycleExpired
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleActive:
		return "active"
	case LifecycleWarning:
		return "warning"
	case LifecycleExpired:
		return "expired"
	}
	return "unknown"
}

const ExpiredReason = "room time limit reached"

// lifecycleTimer belongs to exactly one room instance. gen distinguishes a
// recreated room with the same id from the one the timer was armed for.
type lifecycleTimer struct {
	gen     uint64
	state   LifecycleState
	warning *clock.Timer
	expiry  *clock.Timer
}

func (t *lifecycleTimer) stop() {
	if t == nil {
		return
	}
	if t.warning != nil {
		t.warning.Stop()
	}
	if t.expiry != nil {
		t.expiry.Stop()
	}
}

// armLocked schedules one warning at WarningLead before expiry, skipped when
// the room lives shorter than the lead, and the hard expiry.
func (m *RoomManager) armLocked(id domain.RoomID, gen uint64, d time.Duration) *lifecycleTimer {
	t := &lifecycleTimer{gen: gen, state: LifecycleActive}
	if lead := m.opts.WarningLead; lead > 0 && d > lead {
		t.warning = m.clock.AfterFunc(d-lead, func() { m.fireWarning(id, gen) })
	}
	t.expiry = m.clock.AfterFunc(d, func() { m.fireExpiry(id, gen) })
	return t
}

// current returns the entry only if it is still the instance gen was armed
// for. Callers hold m.mu.
func (m *RoomManager) current(id domain.RoomID, gen uint64) (*roomEntry, bool) {
	entry, ok := m.rooms[id]
	if !ok || entry.timer == nil || entry.timer.gen != gen {
		return nil, false
	}
	return entry, true
}

func (m *RoomManager) fireWarning(id domain.RoomID, gen uint64) {
	m.mu.Lock()
	entry, ok := m.current(id, gen)
	if !ok || entry.timer.state != LifecycleActive {
		m.mu.Unlock()
		return
	}
	entry.timer.state = LifecycleWarning
	snap := entry.room.Snapshot()
	listener := m.listener
	var remaining time.Duration
	if exp := entry.room.ExpiresAt(); exp != nil {
		remaining = exp.Sub(m.clock.Now())
	}
	m.mu.Unlock()

	log.Info().
		Str("module", "app.lifecycle").
		Str("room_id", string(id)).
		Dur("remaining", remaining).
		Msg("room expiring")
	if listener != nil {
		listener.RoomExpiring(snap, remaining)
	}
}

func (m *RoomManager) fireExpiry(id domain.RoomID, gen uint64) {
	m.mu.Lock()
	entry, ok := m.current(id, gen)
	if !ok {
		m.mu.Unlock()
		return
	}
	entry.timer.state = LifecycleExpired
	snap := entry.room.Snapshot()
	m.evictLocked(entry)
	m.deleteLocked(id)
	listener := m.listener
	m.mu.Unlock()

	log.Info().
		Str("module", "app.lifecycle").
		Str("room_id", string(id)).
		Int("evicted", len(snap.Participants)).
		Msg("room expired")
	if listener != nil && len(snap.Participants) > 0 {
		listener.RoomExpired(snap, snap.Participants)
	}
}

// LifecycleStateOf reports the timer state of a live timed room.
func (m *RoomManager) LifecycleStateOf(id domain.RoomID) (LifecycleState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[id]
	if !ok || entry.timer == nil {
		return 0, false
	}
	return entry.timer.state, true
}
