package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/middleware"
	"github.com/estilobot/backend/internal/model/accesslog"
	"github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
)

const testPassword = "segredo"

func setupRouter() (*chi.Mux, *chat.MemoryStore, *accesslog.MemoryStore, *instruction.MemoryStore) {
	sessions := chat.NewMemoryStore()
	logs := accesslog.NewMemoryStore()
	instructions := instruction.NewMemoryStore()
	handler := New(sessions, logs, instructions, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/admin", func(sub chi.Router) {
		sub.Use(middleware.RequireAdminPassword(testPassword))
		handler.RegisterRoutes(sub)
	})
	return r, sessions, logs, instructions
}

func post(t *testing.T, r http.Handler, path string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAdminRejectsWrongPassword(t *testing.T) {
	r, _, _, _ := setupRouter()

	resp := post(t, r, "/admin/stats", map[string]string{"password": "errada"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAdminRejectsMissingPassword(t *testing.T) {
	r, _, _, _ := setupRouter()

	resp := post(t, r, "/admin/stats", map[string]string{})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAdminStats(t *testing.T) {
	r, sessions, logs, _ := setupRouter()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := sessions.Upsert(ctx, "s1", chat.Patch{StartTime: now, EndTime: now}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := logs.Insert(ctx, accesslog.Entry{IPAddress: "1.2.3.4", City: "Lisboa", ConnectionTime: now}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	resp := post(t, r, "/admin/stats", map[string]string{"password": testPassword})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		TotalConversations  int64                 `json:"totalConversations"`
		TotalConnections    int64                 `json:"totalConnections"`
		RecentConversations []chat.SessionSummary `json:"recentConversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalConversations != 1 || body.TotalConnections != 1 {
		t.Fatalf("unexpected counts: %+v", body)
	}
	if len(body.RecentConversations) != 1 || body.RecentConversations[0].ID != "s1" {
		t.Fatalf("unexpected recent list: %+v", body.RecentConversations)
	}
}

func TestAdminInstructionRoundTrip(t *testing.T) {
	r, _, _, _ := setupRouter()

	// Unset instruction reads back empty.
	resp := post(t, r, "/admin/system-instruction", map[string]string{"password": testPassword})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "" {
		t.Fatalf("expected empty instruction, got %q", got.Text)
	}

	resp = post(t, r, "/admin/update-system-instruction", map[string]string{
		"password": testPassword,
		"text":     "Responda sempre em português.",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = post(t, r, "/admin/system-instruction", map[string]string{"password": testPassword})
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "Responda sempre em português." {
		t.Fatalf("instruction did not persist: %q", got.Text)
	}
}

func TestAdminUpdateInstructionRequiresText(t *testing.T) {
	r, _, _, _ := setupRouter()

	resp := post(t, r, "/admin/update-system-instruction", map[string]string{
		"password": testPassword,
		"text":     "   ",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
