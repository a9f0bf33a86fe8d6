package geo

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/model/accesslog"
	"github.com/estilobot/backend/internal/service/geo"
	"github.com/estilobot/backend/pkg/utils"
)

// Handler serves the user-info lookup and the connection log. Both feed
// the access-log collection only; session data never passes through here.
type Handler struct {
	client *geo.Client
	logs   accesslog.Store
	logger *zap.Logger
}

// New creates the geolocation handler.
func New(client *geo.Client, logs accesslog.Store, logger *zap.Logger) *Handler {
	return &Handler{client: client, logs: logs, logger: logger}
}

// RegisterRoutes mounts the /api geolocation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/user-info", h.handleUserInfo)
	r.Post("/log-connection", h.handleLogConnection)
}

// handleUserInfo resolves the caller's IP to city and country.
func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	ip := callerIP(r)
	if ip == "" {
		utils.RespondError(w, http.StatusBadRequest, "caller IP could not be identified")
		return
	}

	info, err := h.client.Lookup(r.Context(), ip)
	if err != nil {
		h.logger.Error("geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "geolocation lookup failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, info)
}

// handleLogConnection records one widget connection.
func (h *Handler) handleLogConnection(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IP        string `json:"ip"`
		City      string `json:"city"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.IP == "" || payload.City == "" || payload.Timestamp == "" {
		utils.RespondError(w, http.StatusBadRequest, "ip, city and timestamp are required")
		return
	}

	connectedAt, err := time.Parse(time.RFC3339, payload.Timestamp)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
		return
	}

	entry := accesslog.Entry{
		IPAddress:      payload.IP,
		City:           payload.City,
		ConnectionTime: connectedAt,
		CreatedAt:      time.Now().UTC(),
	}

	logID, err := h.logs.Insert(r.Context(), entry)
	if err != nil {
		h.logger.Error("insert access log failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save connection log")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"message": "log saved",
		"logId":   logID,
	})
}

// callerIP prefers X-Forwarded-For (first hop) over the socket address.
// chi's RealIP middleware normally resolves this already; the fallback
// covers direct deployments.
func callerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
