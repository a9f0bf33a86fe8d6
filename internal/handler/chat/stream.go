package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	chatmodel "github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/service/ai"
	"github.com/estilobot/backend/pkg/utils"
)

// StreamEvent is one SSE frame of a streamed reply.
type StreamEvent struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleStream serves GET /api/chat/stream?sessionId=&message=: the reply
// is streamed as SSE deltas and the completed exchange is persisted like
// a regular save.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.aiSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	sessionID := r.URL.Query().Get("sessionId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	history, err := h.loadHistory(ctx, sessionID)
	if err != nil {
		h.logger.Error("load stream history failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, StreamEvent{Event: "start", SessionID: sessionID})

	var reply strings.Builder
	emit := func(chunk string, streamErr error) bool {
		if streamErr != nil {
			h.logger.Error("stream generation failed", zap.Error(streamErr))
			utils.SendSSEChunk(w, flusher, StreamEvent{Event: "error", Error: upstreamErrorMessage(streamErr)})
			return false
		}
		reply.WriteString(chunk)
		utils.SendSSEChunk(w, flusher, StreamEvent{Event: "delta", SessionID: sessionID, Content: chunk})
		return true
	}

	if h.aiSvc.StreamingEnabled() {
		for chunk, streamErr := range h.aiSvc.Stream(ctx, message, history) {
			if !emit(chunk, streamErr) {
				return
			}
		}
	} else {
		full, genErr := h.aiSvc.Generate(ctx, message, history)
		if !emit(full, genErr) {
			return
		}
	}

	result, err := h.chatSvc.SaveExchange(ctx, sessionID, message, reply.String())
	if err != nil {
		h.logger.Error("persist streamed exchange failed", zap.Error(err))
		utils.SendSSEChunk(w, flusher, StreamEvent{Event: "error", Error: "failed to save chat history"})
		return
	}

	utils.SendSSEChunk(w, flusher, StreamEvent{
		Event:     "end",
		SessionID: result.SessionID,
		Finished:  true,
	})
	h.logger.Info("stream completed",
		zap.String("sessionId", result.SessionID),
		zap.Int("messages", result.MessageCount))
}

// loadHistory converts the stored session into provider turns. Unknown
// or absent identifiers start a fresh conversation; store outages do not.
func (h *Handler) loadHistory(ctx context.Context, sessionID string) ([]ai.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if errors.Is(err, chatmodel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	turns := make([]ai.Turn, 0, len(session.Messages))
	for _, msg := range session.Messages {
		turns = append(turns, ai.Turn{Author: msg.Author, Content: msg.Content})
	}
	return turns, nil
}

func upstreamErrorMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrInvalidAPIKey):
		return "invalid Gemini API key"
	case errors.Is(err, ai.ErrBlocked):
		return "response blocked by safety settings"
	default:
		return "failed to generate reply"
	}
}
