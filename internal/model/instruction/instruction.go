package instruction

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultText is used when no instruction document has been stored yet.
const DefaultText = "Você é o EstiloBot, um personal stylist que entende tudo " +
	"sobre moda, tendências e novas coleções."

// ErrNotFound indicates that no instruction document exists yet.
var ErrNotFound = errors.New("system instruction not found")

// ErrUnavailable signals that the instruction store cannot be reached.
var ErrUnavailable = errors.New("instruction store unavailable")

// Instruction is the singleton prompt document steering the bot.
type Instruction struct {
	Text        string    `json:"text" bson:"text"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// Store persists the singleton system instruction.
type Store interface {
	// Get returns the stored instruction, or ErrNotFound when none exists.
	Get(ctx context.Context) (Instruction, error)

	// Set upserts the instruction text.
	Set(ctx context.Context, text string) error
}

// MemoryStore holds the instruction in memory for tests and store-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Instruction
}

// NewMemoryStore returns an empty in-memory instruction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored instruction.
func (s *MemoryStore) Get(_ context.Context) (Instruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Instruction{}, ErrNotFound
	}
	return *s.current, nil
}

// Set replaces the stored instruction text.
func (s *MemoryStore) Set(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Instruction{Text: text, LastUpdated: time.Now().UTC()}
	return nil
}
