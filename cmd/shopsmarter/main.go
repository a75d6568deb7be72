package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/config"
	"github.com/shopsmarter/shopsmarter/internal/db"
	dbRedis "github.com/shopsmarter/shopsmarter/internal/db/redis"
	"github.com/shopsmarter/shopsmarter/internal/domain"
	"github.com/shopsmarter/shopsmarter/internal/index"
	logpkg "github.com/shopsmarter/shopsmarter/internal/logger"
	"github.com/shopsmarter/shopsmarter/internal/metrics"
	catalogrepo "github.com/shopsmarter/shopsmarter/internal/repository/catalog"
	"github.com/shopsmarter/shopsmarter/internal/repository/embcache"
	"github.com/shopsmarter/shopsmarter/internal/scoring"
	chiTransport "github.com/shopsmarter/shopsmarter/internal/transport/chi"
	openaiTransport "github.com/shopsmarter/shopsmarter/internal/transport/openai"
	cartuc "github.com/shopsmarter/shopsmarter/internal/usecase/cart"
	healthuc "github.com/shopsmarter/shopsmarter/internal/usecase/health"
	recommenduc "github.com/shopsmarter/shopsmarter/internal/usecase/recommend"
	refineuc "github.com/shopsmarter/shopsmarter/internal/usecase/refine"
	"github.com/shopsmarter/shopsmarter/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shopsmarter API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
	)

	reranker := openaiTransport.NewReranker(&openaiTransport.RerankerConfig{
		APIKey:     cfg.Reranker.APIKey,
		BaseURL:    cfg.Reranker.BaseURL,
		Model:      cfg.Reranker.Model,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		MaxRetries: cfg.Reranker.MaxRetries,
		BaseDelay:  time.Duration(cfg.Reranker.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Reranker.MaxDelayMs) * time.Millisecond,
		Logger:     logger,
	})

	catalogRepo := catalogrepo.New(store)
	indexHandle := index.NewHandle(cfg.Index.VectorPath, cfg.Index.IDPath)

	// Use case services
	recommendSvc := recommenduc.New(catalogRepo, embedder, indexHandle, scoring.New(cfg.Scoring), logger)
	refineSvc := refineuc.New(reranker, logger)
	cartSvc := cartuc.New(recommendSvc, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), indexHandle)

	server := chiTransport.NewServer(
		recommendSvc, refineSvc, cartSvc, catalogRepo, healthSvc, indexHandle, logger,
	)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
		Provider: cfg.Embedding.Provider,
		Logger:   logger,
	})

	if store == nil {
		return base
	}
	ttl := time.Duration(cfg.Embedding.CacheTTLSec) * time.Second
	return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
