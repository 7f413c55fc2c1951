package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/clock"
	"github.com/dkeye/VoiceHub/internal/domain"
)

// LifecycleListener receives timer-driven transitions. Calls are made
// outside the manager lock, after the registry change is applied.
type LifecycleListener interface {
	RoomExpiring(room domain.RoomSnapshot, remaining time.Duration)
	RoomExpired(room domain.RoomSnapshot, evicted []domain.Participant)
}

type RoomOptions struct {
	// WarningLead is how long before expiry the single warning fires.
	WarningLead   time.Duration
	MaxUsersLimit int
}

type roomEntry struct {
	room  *domain.Room
	timer *lifecycleTimer
}

// RoomManager is the RoomRegistry: live rooms and the session -> room index,
// both guarded by one lock so every join, leave, delete and expiry is a
// single atomic step.
type RoomManager struct {
	mu       sync.Mutex
	clock    clock.Clock
	opts     RoomOptions
	rooms    map[domain.RoomID]*roomEntry
	members  map[domain.SessionID]domain.RoomID
	gen      uint64
	listener LifecycleListener
	newID    func() domain.RoomID
}

func NewRoomManager(clk clock.Clock, opts RoomOptions) *RoomManager {
	if clk == nil {
		clk = clock.Real()
	}
	return &RoomManager{
		clock:   clk,
		opts:    opts,
		rooms:   make(map[domain.RoomID]*roomEntry),
		members: make(map[domain.SessionID]domain.RoomID),
		newID:   func() domain.RoomID { return domain.RoomID(cuid.New()) },
	}
}

func (m *RoomManager) SetListener(l LifecycleListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// JoinResult is returned by Join. Left is set when the session was moved
// out of another room in the same step.
type JoinResult struct {
	Room domain.RoomSnapshot
	User domain.Participant
	Left *LeaveResult
}

// LeaveResult describes a removal. Room is the state after removal; Deleted
// reports that the room became empty and was dropped.
type LeaveResult struct {
	Room    domain.RoomSnapshot
	User    domain.Participant
	Deleted bool
}

func (m *RoomManager) Create(spec domain.RoomSpec) (domain.RoomSnapshot, error) {
	if err := spec.Validate(m.opts.MaxUsersLimit); err != nil {
		return domain.RoomSnapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := spec.ID
	if id == "" {
		id = m.newID()
	}
	if _, ok := m.rooms[id]; ok {
		return domain.RoomSnapshot{}, fmt.Errorf("%w: %s", domain.ErrRoomExists, id)
	}

	room := domain.NewRoom(id, spec, m.clock.Now())
	entry := &roomEntry{room: room}
	if room.Duration != nil {
		m.gen++
		entry.timer = m.armLocked(id, m.gen, *room.Duration)
	}
	m.rooms[id] = entry

	log.Info().
		Str("module", "app.rooms").
		Str("room_id", string(id)).
		Str("name", string(room.Name)).
		Int("max_users", room.MaxUsers).
		Bool("timed", room.Duration != nil).
		Msg("room created")
	return room.Snapshot(), nil
}

// Join admits sid into roomID. Validation happens before any mutation, so a
// failed join never changes membership anywhere.
func (m *RoomManager) Join(
	sid domain.SessionID,
	roomID domain.RoomID,
	displayName string,
	password string,
	identity domain.IdentityID,
) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.rooms[roomID]
	if !ok {
		return JoinResult{}, domain.ErrRoomNotFound
	}
	if cur, ok := m.members[sid]; ok && cur == roomID {
		return JoinResult{}, domain.ErrAlreadyInRoom
	}
	if !entry.room.CheckPassword(password) {
		return JoinResult{}, domain.ErrInvalidPassword
	}
	if entry.room.IsFull() {
		return JoinResult{}, domain.ErrRoomFull
	}

	var res JoinResult
	if _, ok := m.members[sid]; ok {
		if left, ok := m.leaveLocked(sid); ok {
			res.Left = &left
		}
	}

	p := domain.Participant{
		ConnectionID: sid,
		DisplayName:  displayName,
		IdentityID:   identity,
		JoinedAt:     m.clock.Now(),
		Audio:        domain.DefaultAudioState(),
	}
	if err := entry.room.Admit(p, password); err != nil {
		return JoinResult{}, err
	}
	m.members[sid] = roomID

	res.Room = entry.room.Snapshot()
	res.User = p
	log.Info().
		Str("module", "app.rooms").
		Str("sid", string(sid)).
		Str("room_id", string(roomID)).
		Int("count", len(entry.room.Participants)).
		Msg("joined room")
	return res, nil
}

// Leave removes sid from its room. It is idempotent.
func (m *RoomManager) Leave(sid domain.SessionID) (LeaveResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(sid)
}

func (m *RoomManager) leaveLocked(sid domain.SessionID) (LeaveResult, bool) {
	roomID, ok := m.members[sid]
	if !ok {
		return LeaveResult{}, false
	}
	delete(m.members, sid)

	entry, ok := m.rooms[roomID]
	if !ok {
		return LeaveResult{}, false
	}
	p, ok := entry.room.Remove(sid)
	if !ok {
		return LeaveResult{}, false
	}

	res := LeaveResult{User: p}
	if len(entry.room.Participants) == 0 {
		m.deleteLocked(roomID)
		res.Deleted = true
	}
	res.Room = entry.room.Snapshot()
	log.Info().
		Str("module", "app.rooms").
		Str("sid", string(sid)).
		Str("room_id", string(roomID)).
		Bool("deleted", res.Deleted).
		Msg("left room")
	return res, true
}

// Delete drops a room and evicts its participants. Deleting an absent room
// is a no-op.
func (m *RoomManager) Delete(roomID domain.RoomID) (domain.RoomSnapshot, []domain.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, nil, false
	}
	snap := entry.room.Snapshot()
	m.evictLocked(entry)
	m.deleteLocked(roomID)
	return snap, snap.Participants, true
}

func (m *RoomManager) evictLocked(entry *roomEntry) {
	for _, p := range entry.room.Participants {
		if m.members[p.ConnectionID] == entry.room.ID {
			delete(m.members, p.ConnectionID)
		}
	}
	entry.room.Participants = nil
}

func (m *RoomManager) deleteLocked(roomID domain.RoomID) {
	entry, ok := m.rooms[roomID]
	if !ok {
		return
	}
	entry.timer.stop()
	delete(m.rooms, roomID)
	log.Info().Str("module", "app.rooms").Str("room_id", string(roomID)).Msg("room deleted")
}

func (m *RoomManager) Get(roomID domain.RoomID) (domain.RoomSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return entry.room.Snapshot(), true
}

// List returns every room ordered by creation time.
func (m *RoomManager) List() []domain.RoomInfo {
	m.mu.Lock()
	out := make([]domain.RoomSnapshot, 0, len(m.rooms))
	for _, e := range m.rooms {
		out = append(out, e.room.Snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	infos := make([]domain.RoomInfo, len(out))
	for i, s := range out {
		infos[i] = s.Info()
	}
	return infos
}

// RoomOf returns the current room of sid.
func (m *RoomManager) RoomOf(sid domain.SessionID) (domain.RoomSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.members[sid]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	entry, ok := m.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return entry.room.Snapshot(), true
}

// SameRoom reports whether both sessions are participants of one room.
func (m *RoomManager) SameRoom(a, b domain.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ra, ok := m.members[a]
	if !ok {
		return false
	}
	rb, ok := m.members[b]
	return ok && ra == rb
}

// UpdateAudio applies fn to the sender's own audio state and returns the
// updated participant with the room snapshot to broadcast to.
func (m *RoomManager) UpdateAudio(
	sid domain.SessionID,
	fn func(domain.AudioState) (domain.AudioState, error),
) (domain.Participant, domain.RoomSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.members[sid]
	if !ok {
		return domain.Participant{}, domain.RoomSnapshot{}, domain.ErrNotInRoom
	}
	entry, ok := m.rooms[roomID]
	if !ok {
		return domain.Participant{}, domain.RoomSnapshot{}, domain.ErrNotInRoom
	}
	i := entry.room.IndexOf(sid)
	if i < 0 {
		return domain.Participant{}, domain.RoomSnapshot{}, domain.ErrNotInRoom
	}
	next, err := fn(entry.room.Participants[i].Audio)
	if err != nil {
		return domain.Participant{}, domain.RoomSnapshot{}, err
	}
	entry.room.Participants[i].Audio = next
	return entry.room.Participants[i], entry.room.Snapshot(), nil
}

func (m *RoomManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
