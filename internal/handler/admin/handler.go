package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/model/accesslog"
	"github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
	"github.com/estilobot/backend/pkg/utils"
)

// recentSessions caps the preview list in the stats payload.
const recentSessions = 5

// Handler serves the password-guarded administration surface: usage
// stats and system-instruction management. The password itself is
// checked by middleware before these handlers run.
type Handler struct {
	sessions     chat.Store
	logs         accesslog.Store
	instructions instruction.Store
	logger       *zap.Logger
}

// New creates the admin handler.
func New(sessions chat.Store, logs accesslog.Store, instructions instruction.Store, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, logs: logs, instructions: instructions, logger: logger}
}

// RegisterRoutes mounts the admin routes. All of them are POST so the
// password travels in the body, never in the URL.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stats", h.handleStats)
	r.Post("/system-instruction", h.handleGetInstruction)
	r.Post("/update-system-instruction", h.handleUpdateInstruction)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalSessions, err := h.sessions.Count(ctx)
	if err != nil {
		h.logger.Error("count sessions failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load admin stats")
		return
	}

	totalLogs, err := h.logs.Count(ctx)
	if err != nil {
		h.logger.Error("count access logs failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load admin stats")
		return
	}

	recent, err := h.sessions.ListRecent(ctx, recentSessions, 0)
	if err != nil {
		h.logger.Error("list recent sessions failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load admin stats")
		return
	}
	if recent == nil {
		recent = []chat.SessionSummary{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"totalConversations":  totalSessions,
		"totalConnections":    totalLogs,
		"recentConversations": recent,
	})
}

func (h *Handler) handleGetInstruction(w http.ResponseWriter, r *http.Request) {
	doc, err := h.instructions.Get(r.Context())
	if errors.Is(err, instruction.ErrNotFound) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"text": ""})
		return
	}
	if err != nil {
		h.logger.Error("get system instruction failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load system instruction")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"text": doc.Text})
}

func (h *Handler) handleUpdateInstruction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := h.instructions.Set(r.Context(), payload.Text); err != nil {
		h.logger.Error("update system instruction failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to update system instruction")
		return
	}

	h.logger.Info("system instruction updated", zap.Int("length", len(payload.Text)))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "system instruction updated"})
}
