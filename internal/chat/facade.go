package chat

import (
	"context"
	"log/slog"
	"sync"
)

// Mode tags which backend a session (or the whole store) is running on.
// The fallback chain is deliberately observable rather than an implicit
// try/catch, so callers and tests can see which backend is active.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

const DefaultTitle = "New Chat"

// RemoteAdapter is the push-capable primary backend.
type RemoteAdapter interface {
	CreateSession(ctx context.Context, ownerID, title string) (*Session, error)
	AppendMessage(ctx context.Context, ownerID, sessionID string, m *Message) (string, error)
	Sessions(ctx context.Context, ownerID string) ([]Session, error)
	Messages(ctx context.Context, ownerID, sessionID string) ([]Message, error)
	// StreamMessages delivers the full ordered message set on every
	// change. The returned func detaches the listener; never calling
	// it leaks the subscription.
	StreamMessages(ctx context.Context, ownerID, sessionID string, fn func([]Message)) (func(), error)
	StreamSessions(ctx context.Context, ownerID string, fn func([]Session)) (func(), error)
}

// LocalAdapter is the synchronous on-device fallback. No subscriptions.
type LocalAdapter interface {
	CreateSession(ctx context.Context, ownerID, title string) (string, error)
	AppendMessage(ctx context.Context, ownerID, sessionID string, m *Message) (string, error)
	GetSessions(ctx context.Context, ownerID string) ([]Session, error)
	GetMessages(ctx context.Context, ownerID, sessionID string) ([]Message, error)
}

// Store routes persistence calls to the remote adapter, falling back to
// the local adapter when remote session creation fails. The fallback is
// decided once per session, at init time: no retry, no backoff. That is
// an availability trade-off, not a correctness guarantee.
type Store struct {
	remote RemoteAdapter
	local  LocalAdapter

	mu       sync.RWMutex
	modes    map[string]Mode
	degraded bool
}

func NewStore(remote RemoteAdapter, local LocalAdapter) *Store {
	return &Store{
		remote: remote,
		local:  local,
		modes:  make(map[string]Mode),
	}
}

// InitSession creates a session on the remote backend, or locally when
// the remote write fails. The chosen mode sticks for the session's
// lifetime and flips the whole store into degraded reads.
func (s *Store) InitSession(ctx context.Context, ownerID, title string) (string, Mode, error) {
	if title == "" {
		title = DefaultTitle
	}

	if s.remote != nil && !s.Degraded() {
		sess, err := s.remote.CreateSession(ctx, ownerID, title)
		if err == nil {
			s.setMode(sess.ID, ModeRemote)
			return sess.ID, ModeRemote, nil
		}
		slog.Warn("remote session create failed, falling back to local",
			"owner_id", ownerID, "error", err)
	}

	id, err := s.local.CreateSession(ctx, ownerID, title)
	if err != nil {
		return "", ModeLocal, err
	}
	s.setMode(id, ModeLocal)
	s.setDegraded()
	return id, ModeLocal, nil
}

// Append writes a message through the session's backend. Both adapters
// bump the session's UpdatedAt as part of the append.
func (s *Store) Append(ctx context.Context, ownerID, sessionID string, m *Message) (string, error) {
	if s.SessionMode(sessionID) == ModeLocal {
		return s.local.AppendMessage(ctx, ownerID, sessionID, m)
	}
	return s.remote.AppendMessage(ctx, ownerID, sessionID, m)
}

// Subscribe attaches fn to the session's push feed. In local mode it is
// a no-op push source: callers must poll by re-reading after appends.
func (s *Store) Subscribe(ctx context.Context, ownerID, sessionID string, fn func([]Message)) (func(), error) {
	if s.SessionMode(sessionID) == ModeLocal {
		return func() {}, nil
	}
	return s.remote.StreamMessages(ctx, ownerID, sessionID, fn)
}

func (s *Store) Sessions(ctx context.Context, ownerID string) ([]Session, error) {
	if s.remote == nil || s.Degraded() {
		return s.local.GetSessions(ctx, ownerID)
	}
	return s.remote.Sessions(ctx, ownerID)
}

func (s *Store) Messages(ctx context.Context, ownerID, sessionID string) ([]Message, error) {
	if s.SessionMode(sessionID) == ModeLocal {
		return s.local.GetMessages(ctx, ownerID, sessionID)
	}
	return s.remote.Messages(ctx, ownerID, sessionID)
}

// SessionMode reports the backend a session is pinned to. Sessions this
// process never initialized default to the remote backend when one is
// configured and the store has not degraded.
func (s *Store) SessionMode(sessionID string) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.modes[sessionID]; ok {
		return m
	}
	if s.remote == nil || s.degraded {
		return ModeLocal
	}
	return ModeRemote
}

// Degraded reports whether any session fell back to local storage, or
// the store was built without a remote backend at all.
func (s *Store) Degraded() bool {
	if s.remote == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) setMode(sessionID string, m Mode) {
	s.mu.Lock()
	s.modes[sessionID] = m
	s.mu.Unlock()
}

func (s *Store) setDegraded() {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
}
