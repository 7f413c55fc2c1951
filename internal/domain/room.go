package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type (
	RoomID    string
	RoomName  string
	SessionID string
)

// RoomSpec is the input of room creation. ID is optional.
type RoomSpec struct {
	ID        RoomID         `json:"id,omitempty"`
	Name      RoomName       `json:"name"`
	Password  string         `json:"password,omitempty"`
	MaxUsers  int            `json:"maxUsers"`
	Duration  *time.Duration `json:"-"`
	IsDefault bool           `json:"isDefault,omitempty"`
	IsDemo    bool           `json:"isDemo,omitempty"`
}

func (s RoomSpec) Validate(maxUsersLimit int) error {
	name := strings.TrimSpace(string(s.Name))
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidSpec)
	}
	if len(name) > MaxRoomNameLen {
		return fmt.Errorf("%w: name too long", ErrInvalidSpec)
	}
	if s.MaxUsers < 1 {
		return fmt.Errorf("%w: maxUsers must be at least 1", ErrInvalidSpec)
	}
	if maxUsersLimit > 0 && s.MaxUsers > maxUsersLimit {
		return fmt.Errorf("%w: maxUsers above limit %d", ErrInvalidSpec, maxUsersLimit)
	}
	if s.Duration != nil && *s.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidSpec)
	}
	return nil
}

// Room is the server-authoritative record. Participants are kept in join
// order and never exceed MaxUsers.
type Room struct {
	ID           RoomID
	Name         RoomName
	Password     string
	MaxUsers     int
	Duration     *time.Duration
	CreatedAt    time.Time
	IsDefault    bool
	IsDemo       bool
	Participants []Participant
}

func NewRoom(id RoomID, spec RoomSpec, now time.Time) *Room {
	return &Room{
		ID:        id,
		Name:      RoomName(strings.TrimSpace(string(spec.Name))),
		Password:  spec.Password,
		MaxUsers:  spec.MaxUsers,
		Duration:  spec.Duration,
		CreatedAt: now,
		IsDefault: spec.IsDefault,
		IsDemo:    spec.IsDemo,
	}
}

// CheckPassword compares by plain equality; an unset password admits anyone.
func (r *Room) CheckPassword(password string) bool {
	return r.Password == "" || r.Password == password
}

func (r *Room) IsFull() bool { return len(r.Participants) >= r.MaxUsers }

func (r *Room) IndexOf(sid SessionID) int {
	for i := range r.Participants {
		if r.Participants[i].ConnectionID == sid {
			return i
		}
	}
	return -1
}

// Admit validates password and capacity and appends p. The room is left
// untouched on error.
func (r *Room) Admit(p Participant, password string) error {
	if !r.CheckPassword(password) {
		return ErrInvalidPassword
	}
	if r.IndexOf(p.ConnectionID) >= 0 {
		return ErrAlreadyInRoom
	}
	if r.IsFull() {
		return ErrRoomFull
	}
	r.Participants = append(r.Participants, p)
	return nil
}

// Remove drops the participant for sid and reports whether it was present.
func (r *Room) Remove(sid SessionID) (Participant, bool) {
	i := r.IndexOf(sid)
	if i < 0 {
		return Participant{}, false
	}
	p := r.Participants[i]
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	return p, true
}

func (r *Room) ExpiresAt() *time.Time {
	if r.Duration == nil {
		return nil
	}
	t := r.CreatedAt.Add(*r.Duration)
	return &t
}

// Snapshot is a deep copy safe to hand to other goroutines.
func (r *Room) Snapshot() RoomSnapshot {
	ps := make([]Participant, len(r.Participants))
	copy(ps, r.Participants)
	s := RoomSnapshot{
		ID:           r.ID,
		Name:         r.Name,
		HasPassword:  r.Password != "",
		MaxUsers:     r.MaxUsers,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt(),
		IsDefault:    r.IsDefault,
		IsDemo:       r.IsDemo,
		Participants: ps,
	}
	if r.Duration != nil {
		s.DurationMs = r.Duration.Milliseconds()
	}
	return s
}

// RoomSnapshot is the read-only wire view; the password never leaves the
// registry.
type RoomSnapshot struct {
	ID           RoomID        `json:"id"`
	Name         RoomName      `json:"name"`
	HasPassword  bool          `json:"hasPassword"`
	MaxUsers     int           `json:"maxUsers"`
	DurationMs   int64         `json:"durationMs,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	ExpiresAt    *time.Time    `json:"expiresAt,omitempty"`
	IsDefault    bool          `json:"isDefault"`
	IsDemo       bool          `json:"isDemo"`
	Participants []Participant `json:"participants"`
}

// RoomInfo is the listing entry.
type RoomInfo struct {
	ID          RoomID     `json:"id"`
	Name        RoomName   `json:"name"`
	HasPassword bool       `json:"hasPassword"`
	MaxUsers    int        `json:"maxUsers"`
	UserCount   int        `json:"userCount"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsDefault   bool       `json:"isDefault"`
	IsDemo      bool       `json:"isDemo"`
}

func (s RoomSnapshot) Info() RoomInfo {
	return RoomInfo{
		ID:          s.ID,
		Name:        s.Name,
		HasPassword: s.HasPassword,
		MaxUsers:    s.MaxUsers,
		UserCount:   len(s.Participants),
		ExpiresAt:   s.ExpiresAt,
		IsDefault:   s.IsDefault,
		IsDemo:      s.IsDemo,
	}
}

// Participant is a connection's membership record in exactly one room.
type Participant struct {
	ConnectionID SessionID  `json:"id"`
	DisplayName  string     `json:"userName"`
	IdentityID   IdentityID `json:"identityId,omitempty"`
	JoinedAt     time.Time  `json:"joinedAt"`
	Audio        AudioState `json:"audioState"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Position) Valid() bool {
	for _, v := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

const (
	DefaultVolume = 1.0
	MaxVolume     = 2.0
)

type AudioState struct {
	Muted          bool     `json:"muted"`
	Volume         float64  `json:"volume"`
	Position       Position `json:"spatialPosition"`
	OutputDeviceID string   `json:"outputDeviceId,omitempty"`
}

func DefaultAudioState() AudioState {
	return AudioState{Volume: DefaultVolume}
}

// AudioSettings is a partial update; nil fields keep the current value.
type AudioSettings struct {
	Muted          *bool     `json:"muted,omitempty"`
	Volume         *float64  `json:"volume,omitempty"`
	Position       *Position `json:"spatialPosition,omitempty"`
	OutputDeviceID *string   `json:"outputDeviceId,omitempty"`
}

// Merge applies s over a shallowly. Volume is clamped to [0, MaxVolume].
func (a AudioState) Merge(s AudioSettings) (AudioState, error) {
	if s.Muted != nil {
		a.Muted = *s.Muted
	}
	if s.Volume != nil {
		v := *s.Volume
		if math.IsNaN(v) {
			return a, fmt.Errorf("%w: volume is NaN", ErrInvalidAudio)
		}
		a.Volume = math.Min(math.Max(v, 0), MaxVolume)
	}
	if s.Position != nil {
		if !s.Position.Valid() {
			return a, fmt.Errorf("%w: position is not finite", ErrInvalidAudio)
		}
		a.Position = *s.Position
	}
	if s.OutputDeviceID != nil {
		a.OutputDeviceID = *s.OutputDeviceID
	}
	return a, nil
}
