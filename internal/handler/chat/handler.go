package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatmodel "github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/service/ai"
	chatservice "github.com/estilobot/backend/internal/service/chat"
	"github.com/estilobot/backend/pkg/utils"
)

// Handler exposes the chat surface: reply generation, exchange
// persistence and history reads.
type Handler struct {
	chatSvc *chatservice.Service
	aiSvc   *ai.Service // nil when no API key is configured
	logger  *zap.Logger
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service, aiSvc *ai.Service, logger *zap.Logger) *Handler {
	return &Handler{chatSvc: chatSvc, aiSvc: aiSvc, logger: logger}
}

// RegisterRoutes mounts the /api/chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/salvar", h.handleSave)
	r.Get("/chat/historicos", h.handleHistory)
	r.Get("/chat/historicos/{sessionID}", h.handleTranscript)
	r.Get("/chat/stream", h.handleStream)
}

// HandleGenerate serves POST /chat: forwards the message and prior turns
// to the reply provider.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.aiSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai generation unavailable")
		return
	}

	var payload struct {
		Message string    `json:"message"`
		History []ai.Turn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.aiSvc.Generate(r.Context(), payload.Message, payload.History)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (h *Handler) respondUpstreamError(w http.ResponseWriter, err error) {
	h.logger.Error("reply generation failed", zap.Error(err))
	switch {
	case errors.Is(err, ai.ErrInvalidAPIKey):
		utils.RespondError(w, http.StatusUnauthorized, "invalid Gemini API key")
	case errors.Is(err, ai.ErrBlocked):
		utils.RespondError(w, http.StatusBadRequest, "response blocked by safety settings")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate reply")
	}
}

// handleSave persists one user/bot exchange, creating the session when
// no known identifier is supplied.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserMessage string `json:"userMessage"`
		BotMessage  string `json:"botMessage"`
		SessionID   string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.SaveExchange(r.Context(), payload.SessionID, payload.UserMessage, payload.BotMessage)
	if err != nil {
		if errors.Is(err, chatservice.ErrInvalidInput) {
			utils.RespondError(w, http.StatusBadRequest, "userMessage and botMessage are required")
			return
		}
		h.logger.Error("save exchange failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"sessionId":    result.SessionID,
		"messageCount": result.MessageCount,
	})
}

// handleHistory lists recent session summaries, newest first. An empty
// list is a successful answer; only store failures produce an error.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit value")
			return
		}
		limit = parsed
	}

	summaries, err := h.chatSvc.ListSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}

	if summaries == nil {
		summaries = []chatmodel.SessionSummary{}
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

// handleTranscript returns the rendered transcript for one session.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	entries, err := h.chatSvc.GetTranscript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatmodel.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("load transcript failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  entries,
	})
}
