package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	chatmodel "github.com/estilobot/backend/internal/model/chat"
	chatservice "github.com/estilobot/backend/internal/service/chat"
	"github.com/estilobot/backend/internal/service/transcript"
)

// countingStore wraps the memory store to observe write traffic.
type countingStore struct {
	chatmodel.Store
	mu      sync.Mutex
	upserts int
}

func (s *countingStore) Upsert(ctx context.Context, sessionID string, patch chatmodel.Patch) (chatmodel.Session, error) {
	s.mu.Lock()
	s.upserts++
	s.mu.Unlock()
	return s.Store.Upsert(ctx, sessionID, patch)
}

// downStore simulates an unreachable document store.
type downStore struct{}

func (downStore) Get(context.Context, string) (chatmodel.Session, error) {
	return chatmodel.Session{}, chatmodel.ErrUnavailable
}

func (downStore) Upsert(context.Context, string, chatmodel.Patch) (chatmodel.Session, error) {
	return chatmodel.Session{}, chatmodel.ErrUnavailable
}

func (downStore) ListRecent(context.Context, int, int) ([]chatmodel.SessionSummary, error) {
	return nil, chatmodel.ErrUnavailable
}

func (downStore) Count(context.Context) (int64, error) {
	return 0, chatmodel.ErrUnavailable
}

func newService(store chatmodel.Store) *chatservice.Service {
	return chatservice.NewService(store, zap.NewNop())
}

func TestSaveExchangeRoundTrip(t *testing.T) {
	store := chatmodel.NewMemoryStore()
	svc := newService(store)
	ctx := context.Background()

	result, err := svc.SaveExchange(ctx, "", "Preciso de um look casual", "Claro! Vamos ver opções.")
	if err != nil {
		t.Fatalf("SaveExchange err: %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("expected an assigned session ID")
	}
	if result.MessageCount != 2 {
		t.Fatalf("expected 2 messages, got %d", result.MessageCount)
	}

	entries, err := svc.GetTranscript(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("GetTranscript err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].DisplayName != transcript.UserLabel || entries[0].Content != "Preciso de um look casual" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].DisplayName != transcript.BotLabel || entries[1].Content != "Claro! Vamos ver opções." {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}

	session, err := svc.GetSession(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if session.Title != "Preciso de um look casual" {
		t.Fatalf("title not synthesized: %q", session.Title)
	}
	if session.StartTime.After(session.EndTime) {
		t.Fatalf("StartTime %v after EndTime %v", session.StartTime, session.EndTime)
	}
}

func TestSaveExchangeInvalidInput(t *testing.T) {
	store := &countingStore{Store: chatmodel.NewMemoryStore()}
	svc := newService(store)
	ctx := context.Background()

	cases := []struct{ user, bot string }{
		{"", "hi"},
		{"hi", ""},
		{"   ", "hi"},
		{"hi", "\t"},
	}
	for _, tc := range cases {
		if _, err := svc.SaveExchange(ctx, "", tc.user, tc.bot); !errors.Is(err, chatservice.ErrInvalidInput) {
			t.Fatalf("(%q,%q): expected ErrInvalidInput, got %v", tc.user, tc.bot, err)
		}
	}
	if store.upserts != 0 {
		t.Fatalf("invalid input reached the store %d times", store.upserts)
	}
}

func TestSaveExchangeUnknownSessionGetsFreshID(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())

	result, err := svc.SaveExchange(context.Background(), "ghost-session", "oi", "olá")
	if err != nil {
		t.Fatalf("SaveExchange err: %v", err)
	}
	if result.SessionID == "ghost-session" {
		t.Fatal("unknown identifier was resurrected instead of replaced")
	}
}

func TestSaveExchangeAppendsPairs(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())
	ctx := context.Background()

	result, err := svc.SaveExchange(ctx, "", "primeira", "resposta")
	if err != nil {
		t.Fatalf("SaveExchange err: %v", err)
	}
	sessionID := result.SessionID

	const pairs = 4
	for i := 1; i < pairs; i++ {
		result, err = svc.SaveExchange(ctx, sessionID, "pergunta", "resposta")
		if err != nil {
			t.Fatalf("SaveExchange %d err: %v", i, err)
		}
		if result.SessionID != sessionID {
			t.Fatalf("session ID changed mid-conversation: %s", result.SessionID)
		}
	}

	if result.MessageCount != pairs*2 {
		t.Fatalf("expected %d messages, got %d", pairs*2, result.MessageCount)
	}
}

func TestSaveExchangeTitleSticksOnceSet(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())
	ctx := context.Background()

	result, err := svc.SaveExchange(ctx, "", "Preciso de um look casual", "Claro!")
	if err != nil {
		t.Fatalf("SaveExchange err: %v", err)
	}

	if _, err := svc.SaveExchange(ctx, result.SessionID, "E sapatos?", "Temos opções."); err != nil {
		t.Fatalf("second SaveExchange err: %v", err)
	}

	session, err := svc.GetSession(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if session.Title != "Preciso de um look casual" {
		t.Fatalf("title changed after follow-up: %q", session.Title)
	}
}

func TestListSessionsLimitAndOrder(t *testing.T) {
	store := chatmodel.NewMemoryStore()
	svc := newService(store)
	ctx := context.Background()
	base := time.Now().UTC()

	// Seed three sessions with distinct start times.
	for i, id := range []string{"t1", "t2", "t3"} {
		if _, err := store.Upsert(ctx, id, chatmodel.Patch{
			StartTime: base.Add(time.Duration(i) * time.Hour),
			EndTime:   base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("seed %s err: %v", id, err)
		}
	}

	summaries, err := svc.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("limit not honored: got %d entries", len(summaries))
	}
	if summaries[0].ID != "t3" || summaries[1].ID != "t2" {
		t.Fatalf("unexpected order: %s, %s", summaries[0].ID, summaries[1].ID)
	}
}

func TestListSessionsEmptyIsNotAnError(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())

	summaries, err := svc.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions err: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected zero sessions, got %d", len(summaries))
	}
}

func TestListSessionsStoreFailure(t *testing.T) {
	svc := newService(downStore{})

	if _, err := svc.ListSessions(context.Background(), 5); !errors.Is(err, chatmodel.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGetTranscriptNotFound(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())

	if _, err := svc.GetTranscript(context.Background(), "unknown-id"); !errors.Is(err, chatmodel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveExchangeStoreFailureSurfaces(t *testing.T) {
	svc := newService(downStore{})

	if _, err := svc.SaveExchange(context.Background(), "", "oi", "olá"); !errors.Is(err, chatmodel.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestConcurrentSaveExchange(t *testing.T) {
	svc := newService(chatmodel.NewMemoryStore())
	ctx := context.Background()

	seed, err := svc.SaveExchange(ctx, "", "início", "olá")
	if err != nil {
		t.Fatalf("seed err: %v", err)
	}

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SaveExchange(ctx, seed.SessionID, "pergunta", "resposta"); err != nil {
				t.Errorf("SaveExchange err: %v", err)
			}
		}()
	}
	wg.Wait()

	session, err := svc.GetSession(ctx, seed.SessionID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if want := (writers + 1) * 2; len(session.Messages) != want {
		t.Fatalf("expected %d messages, got %d", want, len(session.Messages))
	}
}
