package app

import (
	"sync"
	"time"

	"github.com/dkeye/VoiceHub/internal/core"
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Signal       core.SignalConnection
	Cancel       func()
	Identity     *domain.Identity
	IdentityHint *domain.Identity
	ClientToken  string
	ConnectedAt  time.Time
}

// SessionInfo is a copy of a connection session. Room membership lives in
// RoomManager and is filled in by callers that need it.
type SessionInfo struct {
	SID      domain.SessionID
	Identity *domain.Identity
	// IdentityHint comes from the HTTP session cookie at connect time and is
	// only used when register-session names no identity itself.
	IdentityHint *domain.Identity
	ClientToken  string
	ConnectedAt  time.Time
}

// BindOptions carries what the transport knows about a connection.
type BindOptions struct {
	Cancel       func()
	IdentityHint *domain.Identity
	ClientToken  string
}

// Registry holds exactly one entry per live connection.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
	}
}

// Bind registers a new connection. opts.Cancel must tear the connection
// down.
func (r *Registry) Bind(sid domain.SessionID, conn core.SignalConnection, opts BindOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Signal:       conn,
		Cancel:       opts.Cancel,
		IdentityHint: copyIdentity(opts.IdentityHint),
		ClientToken:  opts.ClientToken,
		ConnectedAt:  time.Now(),
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// Unbind removes the entry and reports whether it existed.
func (r *Registry) Unbind(sid domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return true
}

func (r *Registry) Get(sid domain.SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		SID:          sid,
		Identity:     copyIdentity(e.Identity),
		IdentityHint: copyIdentity(e.IdentityHint),
		ClientToken:  e.ClientToken,
		ConnectedAt:  e.ConnectedAt,
	}, true
}

func (r *Registry) Signal(sid domain.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Signal, true
	}
	return nil, false
}

// SetIdentity binds an identity to a live session; it is a no-op for
// unknown sessions.
func (r *Registry) SetIdentity(sid domain.SessionID, id *domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Identity = copyIdentity(id)
	return true
}

func copyIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel asks the adapter to tear the connection down. Cleanup happens on
// the connection's own goroutine.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
