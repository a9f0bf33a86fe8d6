// Package chat implements the session write and history read paths on
// top of the session store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/service/transcript"
)

// ErrInvalidInput rejects empty exchange texts before any store call.
var ErrInvalidInput = errors.New("user and bot messages must be non-empty")

// DefaultListLimit caps session listings when the caller does not supply
// a limit.
const DefaultListLimit = 20

// SaveResult reports the outcome of one persisted exchange.
type SaveResult struct {
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
}

// Service encapsulates conversation persistence and transcript reads.
type Service struct {
	store  chat.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the session store.
func NewService(store chat.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// SaveExchange appends a user/bot message pair to the session, creating
// the session when sessionID is empty or unknown. The user message always
// precedes its bot reply in the stored sequence, and both land in a
// single durable upsert. Persistence failures surface to the caller; no
// retry happens here.
func (s *Service) SaveExchange(ctx context.Context, sessionID, userMessage, botMessage string) (SaveResult, error) {
	userMessage = strings.TrimSpace(userMessage)
	botMessage = strings.TrimSpace(botMessage)
	if userMessage == "" || botMessage == "" {
		return SaveResult{}, ErrInvalidInput
	}

	now := s.now().UTC()
	pair := []chat.Message{
		{Author: chat.AuthorUser, Content: userMessage, Timestamp: now},
		{Author: chat.AuthorBot, Content: botMessage, Timestamp: now},
	}

	patch := chat.Patch{
		StartTime: now,
		EndTime:   now,
		Messages:  pair,
	}

	existing, err := s.lookup(ctx, sessionID)
	switch {
	case err != nil:
		return SaveResult{}, err
	case existing == nil:
		// New session: unknown identifiers get a fresh one rather than
		// resurrecting the caller's value.
		sessionID = uuid.NewString()
		patch.Title = transcript.Title(pair)
	case existing.Title == chat.DefaultTitle:
		patch.Title = transcript.Title(append(existing.Messages, pair...))
	}

	session, err := s.store.Upsert(ctx, sessionID, patch)
	if err != nil {
		return SaveResult{}, fmt.Errorf("persist exchange: %w", err)
	}

	s.logger.Info("exchange saved",
		zap.String("sessionId", session.ID),
		zap.Int("messages", len(session.Messages)))
	return SaveResult{SessionID: session.ID, MessageCount: len(session.Messages)}, nil
}

// GetSession returns the raw session record.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// ListSessions returns at most limit summaries, newest StartTime first.
// An empty slice is a valid answer meaning zero sessions; store failures
// surface as errors.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]chat.SessionSummary, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	summaries, err := s.store.ListRecent(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

// GetTranscript renders the session's messages as display entries.
// Unknown identifiers yield chat.ErrNotFound, never an empty transcript.
func (s *Service) GetTranscript(ctx context.Context, sessionID string) ([]transcript.Entry, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return transcript.Entries(session.Messages), nil
}

// lookup resolves an existing session. A nil result means "create a new
// one": the identifier was empty or unknown. Store outages are not
// treated as unknown sessions.
func (s *Service) lookup(ctx context.Context, sessionID string) (*chat.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}

	session, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return &session, nil
}
