package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by Get for an unknown session identifier.
	// Callers treat it as "start a new session", not as a failure.
	ErrNotFound = errors.New("session not found")

	// ErrUnavailable signals that the underlying store cannot be reached.
	ErrUnavailable = errors.New("session store unavailable")
)

// Patch describes one upsert against a session. Scalar fields are
// last-writer-wins; Messages are appended to the stored sequence, never
// replacing it.
type Patch struct {
	BotID     string
	StartTime time.Time // applied only when the session is created
	EndTime   time.Time
	Title     string // applied only when non-empty
	Messages  []Message
}

// Store is the durable mapping from session identifier to session record.
type Store interface {
	// Get returns the session for the identifier, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Upsert creates the session if absent and applies the patch. The
	// call is atomic per session: a concurrent pair of appends to the
	// same identifier must not lose either one.
	Upsert(ctx context.Context, sessionID string, patch Patch) (Session, error)

	// ListRecent returns at most limit summaries ordered by StartTime
	// descending, skipping offset entries.
	ListRecent(ctx context.Context, limit, offset int) ([]SessionSummary, error)

	// Count reports the total number of stored sessions.
	Count(ctx context.Context) (int64, error)
}

// MemoryStore implements Store with a mutex-guarded map. It backs the
// tests and serves as the fallback when no document store is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get retrieves a session by identifier.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(session), nil
}

// Upsert applies the patch under the store lock, creating the session if
// absent. Messages accumulate; scalars follow last-writer-wins.
func (s *MemoryStore) Upsert(_ context.Context, sessionID string, patch Patch) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		session = Session{
			ID:        sessionID,
			BotID:     patch.BotID,
			StartTime: patch.StartTime,
			Title:     DefaultTitle,
		}
	}

	session.Messages = append(session.Messages, patch.Messages...)
	if !patch.EndTime.IsZero() {
		session.EndTime = patch.EndTime
	}
	if patch.Title != "" {
		session.Title = patch.Title
	}

	s.sessions[sessionID] = session
	return cloneSession(session), nil
}

// ListRecent returns summaries sorted by StartTime descending.
func (s *MemoryStore) ListRecent(_ context.Context, limit, offset int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, session.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})

	if offset >= len(summaries) {
		return []SessionSummary{}, nil
	}
	summaries = summaries[offset:]
	if limit >= 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Count reports the number of stored sessions.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sessions)), nil
}

func cloneSession(session Session) Session {
	copied := session
	copied.Messages = append([]Message(nil), session.Messages...)
	return copied
}
