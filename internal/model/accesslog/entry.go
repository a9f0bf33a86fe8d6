package accesslog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable signals that the access-log store cannot be reached.
var ErrUnavailable = errors.New("access log store unavailable")

// Entry records one widget connection. It lives in its own collection,
// unrelated to the session data model.
type Entry struct {
	IPAddress      string    `json:"ipAddress" bson:"ipAddress"`
	City           string    `json:"city" bson:"city"`
	ConnectionTime time.Time `json:"connectionTime" bson:"connectionTime"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// Store persists access-log entries.
type Store interface {
	// Insert stores the entry and returns its assigned identifier.
	Insert(ctx context.Context, entry Entry) (string, error)

	// Count reports the total number of stored entries.
	Count(ctx context.Context) (int64, error)
}

// MemoryStore keeps entries in memory for tests and store-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an empty in-memory access-log store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends the entry.
func (s *MemoryStore) Insert(_ context.Context, entry Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return uuid.NewString(), nil
}

// Count reports the number of stored entries.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}
