package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cardforge/app/config"
	"cardforge/app/usecase"
	"cardforge/internal/infrastructure/metrics"
	"cardforge/internal/infrastructure/store/filesystem"
	mongorepo "cardforge/internal/infrastructure/store/mongodb"
	"cardforge/internal/infrastructure/transport"
	"cardforge/internal/kinds"
)

func main() {
	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Connect to MongoDB
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("mongo connect failed", "err", err)
		log.Fatalf("mongo connect: %v", err)
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		logger.Error("mongo ping failed", "err", err)
		log.Fatalf("mongo ping: %v", err)
	}
	logger.Info("connected to mongo", "uri", cfg.Mongo.URI)
	db := mongoClient.Database(cfg.Mongo.Database)

	// Repositories
	projectRepo := mongorepo.NewMongoProjectRepo(db)
	cardRepo := mongorepo.NewMongoCardRepo(db)
	exportRepo, err := filesystem.NewExportRepository(cfg.Export.Dir)
	if err != nil {
		log.Printf("err init export repo: %s", err)
		return
	}

	// Generation kind registry
	registry := kinds.Defaults()
	if cfg.Kinds.File != "" {
		registry, err = kinds.Load(cfg.Kinds.File)
		if err != nil {
			logger.Error("load kinds file failed", "file", cfg.Kinds.File, "err", err)
			log.Fatalf("load kinds: %v", err)
		}
	}
	logger.Info("generation kinds configured", "kinds", registry.Names(), "tutorial", cfg.Kinds.Tutorial)

	// Usecases / services
	upstreamClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	sessionSvc := usecase.NewSessionService(
		registry,
		cfg.Upstream.BaseURL,
		cfg.Upstream.APIKey,
		upstreamClient,
		cfg.Kinds.Tutorial,
		logger,
	)
	projectSvc := usecase.NewProjectService(projectRepo, cardRepo, exportRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionSvc.Start(ctx) // фоновый reaper

	// Transport (HTTP handlers)
	handler := transport.NewCardforgeHandler(
		sessionSvc,
		projectSvc,
		logger,
	)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting metrics server on :2112")
		metrics.StartMetricsServer()
	}()

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("stopping sessions")
	sessionSvc.Stop()

	logger.Info("disconnecting mongo")
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect error", "err", err)
	}

	logger.Info("service stopped")
}
