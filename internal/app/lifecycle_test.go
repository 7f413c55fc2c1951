package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceHub/internal/domain"
)

type recordingListener struct {
	mu       sync.Mutex
	expiring []time.Duration
	expired  []domain.RoomSnapshot
	evicted  [][]domain.Participant
}

func (l *recordingListener) RoomExpiring(_ domain.RoomSnapshot, remaining time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expiring = append(l.expiring, remaining)
}

func (l *recordingListener) RoomExpired(room domain.RoomSnapshot, evicted []domain.Participant) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expired = append(l.expired, room)
	l.evicted = append(l.evicted, evicted)
}

func TestLifecycle_WarningThenExpiry(t *testing.T) {
	m, clk := newTestManager(t)
	l := &recordingListener{}
	m.SetListener(l)

	d := 5 * time.Minute
	room, err := m.Create(domain.RoomSpec{Name: "Guest", MaxUsers: 4, Duration: &d})
	require.NoError(t, err)
	_, err = m.Join("a", room.ID, "A", "", "")
	require.NoError(t, err)
	_, err = m.Join("b", room.ID, "B", "", "")
	require.NoError(t, err)

	state, ok := m.LifecycleStateOf(room.ID)
	require.True(t, ok)
	assert.Equal(t, LifecycleActive, state)

	clk.Advance(4 * time.Minute)
	require.Equal(t, []time.Duration{time.Minute}, l.expiring)
	state, _ = m.LifecycleStateOf(room.ID)
	assert.Equal(t, LifecycleWarning, state)

	clk.Advance(time.Minute)
	require.Len(t, l.expired, 1)
	assert.Len(t, l.evicted[0], 2)
	assert.Equal(t, room.ID, l.expired[0].ID)

	_, ok = m.Get(room.ID)
	assert.False(t, ok, "expired room is removed")
	_, ok = m.RoomOf("a")
	assert.False(t, ok, "evicted participants have no room")
	_, err = m.Join("a", room.ID, "A", "", "")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestLifecycle_EmptyRoomExpiresSilently(t *testing.T) {
	m, clk := newTestManager(t)
	l := &recordingListener{}
	m.SetListener(l)

	d := 5000 * time.Millisecond
	room, err := m.Create(domain.RoomSpec{Name: "Short", MaxUsers: 2, Duration: &d})
	require.NoError(t, err)
	assert.Equal(t, 1, clk.Pending(), "rooms shorter than the lead get no warning")

	clk.Advance(4999 * time.Millisecond)
	_, ok := m.Get(room.ID)
	require.True(t, ok)

	clk.Advance(time.Millisecond)
	_, ok = m.Get(room.ID)
	assert.False(t, ok)
	assert.Empty(t, l.expiring)
	assert.Empty(t, l.expired, "nobody to notify")
}

func TestLifecycle_StaleTimerIgnoresRecreatedRoom(t *testing.T) {
	m, clk := newTestManager(t)
	l := &recordingListener{}
	m.SetListener(l)

	short := 2 * time.Minute
	_, err := m.Create(domain.RoomSpec{ID: "reused", Name: "Old", MaxUsers: 2, Duration: &short})
	require.NoError(t, err)
	_, _ = m.Join("a", "reused", "A", "", "")
	_, _ = m.Leave("a")

	_, err = m.Create(domain.RoomSpec{ID: "reused", Name: "New", MaxUsers: 2})
	require.NoError(t, err)
	_, _ = m.Join("b", "reused", "B", "", "")

	clk.Advance(time.Hour)
	snap, ok := m.Get("reused")
	require.True(t, ok, "permanent room must survive the old timer")
	assert.Len(t, snap.Participants, 1)
	assert.Empty(t, l.expired)
}

func TestLifecycle_DeleteBeforeExpiryIsConsistent(t *testing.T) {
	m, clk := newTestManager(t)
	d := 3 * time.Minute
	room, _ := m.Create(domain.RoomSpec{Name: "Doomed", MaxUsers: 2, Duration: &d})
	_, _ = m.Join("a", room.ID, "A", "", "")

	_, evicted, ok := m.Delete(room.ID)
	require.True(t, ok)
	assert.Len(t, evicted, 1)
	_, _, ok = m.Delete(room.ID)
	assert.False(t, ok, "double delete is a no-op")

	clk.Advance(time.Hour)
	assert.Zero(t, m.Count())
	_, ok = m.Leave("a")
	assert.False(t, ok)
}

func TestLifecycle_ExpiryRacesWithLeave(t *testing.T) {
	m, clk := newTestManager(t)
	d := time.Second
	room, _ := m.Create(domain.RoomSpec{Name: "Race", MaxUsers: 2, Duration: &d})
	_, _ = m.Join("a", room.ID, "A", "", "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Leave("a")
	}()
	clk.Advance(time.Second)
	<-done

	_, ok := m.Get(room.ID)
	assert.False(t, ok)
	_, ok = m.RoomOf("a")
	assert.False(t, ok)
}
