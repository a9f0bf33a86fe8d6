package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/config"
	"github.com/estilobot/backend/internal/handler"
	"github.com/estilobot/backend/internal/model/accesslog"
	chatmodel "github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
	"github.com/estilobot/backend/internal/service/ai"
	chatservice "github.com/estilobot/backend/internal/service/chat"
	"github.com/estilobot/backend/internal/service/geo"
	mongostore "github.com/estilobot/backend/internal/store/mongo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Resolve the document store. The Mongo client is owned here: one
	// connection handle shared across all stores, released on shutdown.
	var (
		sessionStore     chatmodel.Store
		accessLogStore   accesslog.Store
		instructionStore instruction.Store
	)
	if cfg.Mongo.Enabled() {
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			logger.Fatal("failed to create mongo client", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(shutdownCtx); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = client.Ping(pingCtx, nil)
		cancel()
		if err != nil {
			logger.Fatal("failed to reach mongo", zap.Error(err))
		}

		db := client.Database(cfg.Mongo.Database)
		sessionStore = mongostore.NewSessionStore(db, logger)
		accessLogStore = mongostore.NewAccessLogStore(db, logger)
		instructionStore = mongostore.NewInstructionStore(db)
		logger.Info("connected to mongo", zap.String("database", cfg.Mongo.Database))
	} else {
		logger.Warn("MONGO_URI not set, falling back to in-memory stores; data will not survive restarts")
		sessionStore = chatmodel.NewMemoryStore()
		accessLogStore = accesslog.NewMemoryStore()
		instructionStore = instruction.NewMemoryStore()
	}

	chatSvc := chatservice.NewService(sessionStore, logger)

	// Initialize AI service
	var aiSvc *ai.Service
	if cfg.AI.Enabled() {
		aiSvc, err = ai.NewService(ctx, instructionStore, cfg.AI, logger)
		if err != nil {
			logger.Warn("failed to initialize AI service, continuing without generation", zap.Error(err))
		} else {
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, skipping AI initialization")
	}

	if !cfg.Admin.Enabled() {
		logger.Warn("ADMIN_PASSWORD not set, admin routes disabled")
	}

	router := handler.NewRouter(handler.Deps{
		Chat:          chatSvc,
		AI:            aiSvc,
		Geo:           geo.NewClient(cfg.Geo.BaseURL),
		Sessions:      sessionStore,
		AccessLogs:    accessLogStore,
		Instructions:  instructionStore,
		AdminPassword: cfg.Admin.Password,
		StaticDir:     cfg.Server.StaticDir,
		Logger:        logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("EstiloBot backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
