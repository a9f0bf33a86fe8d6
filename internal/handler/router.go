package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	adminHandler "github.com/estilobot/backend/internal/handler/admin"
	chatHandler "github.com/estilobot/backend/internal/handler/chat"
	geoHandler "github.com/estilobot/backend/internal/handler/geo"
	middlewarePkg "github.com/estilobot/backend/internal/middleware"
	"github.com/estilobot/backend/internal/model/accesslog"
	chatmodel "github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
	"github.com/estilobot/backend/internal/service/ai"
	chatService "github.com/estilobot/backend/internal/service/chat"
	"github.com/estilobot/backend/internal/service/geo"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Chat          *chatService.Service
	AI            *ai.Service // nil disables generation endpoints
	Geo           *geo.Client
	Sessions      chatmodel.Store
	AccessLogs    accesslog.Store
	Instructions  instruction.Store
	AdminPassword string // empty disables the admin surface
	StaticDir     string // empty disables the widget file server
	Logger        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(d.Chat, d.AI, d.Logger)
	geoH := geoHandler.New(d.Geo, d.AccessLogs, d.Logger)

	// The widget posts the raw chat turn here, outside /api.
	r.Post("/chat", chatH.HandleGenerate)

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		geoH.RegisterRoutes(api)

		if d.AdminPassword != "" {
			adminH := adminHandler.New(d.Sessions, d.AccessLogs, d.Instructions, d.Logger)
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(middlewarePkg.RequireAdminPassword(d.AdminPassword))
				adminH.RegisterRoutes(admin)
			})
		}
	})

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}

	return r
}
