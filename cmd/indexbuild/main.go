// Command indexbuild embeds every catalog item and writes the candidate
// index files. The serving process picks the new files up on its next
// Reload; the write is atomic, so a crash mid-build leaves the previous
// index intact.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shopsmarter/shopsmarter/internal/config"
	dbRedis "github.com/shopsmarter/shopsmarter/internal/db/redis"
	"github.com/shopsmarter/shopsmarter/internal/domain/attribute"
	"github.com/shopsmarter/shopsmarter/internal/index"
	logpkg "github.com/shopsmarter/shopsmarter/internal/logger"
	"github.com/shopsmarter/shopsmarter/internal/metrics"
	catalogrepo "github.com/shopsmarter/shopsmarter/internal/repository/catalog"
	"github.com/shopsmarter/shopsmarter/internal/repository/embcache"
	openaiTransport "github.com/shopsmarter/shopsmarter/internal/transport/openai"
)

func main() {
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

	logger.Info("Starting index build",
		zap.String("env", env),
		zap.String("vector_path", cfg.Index.VectorPath),
		zap.String("id_path", cfg.Index.IDPath),
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

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
		Provider: cfg.Embedding.Provider,
		Logger:   logger,
	})
	// Cached so a rebuild only pays for items whose text changed.
	embedder := embcache.New(base, store,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, logger)

	items, err := catalogrepo.New(store).All(ctx)
	if err != nil {
		logger.Fatal("Failed to read catalog", zap.Error(err))
	}
	if len(items) == 0 {
		logger.Fatal("Catalog is empty, nothing to index")
	}
	logger.Info("Catalog loaded", zap.Int("items", len(items)))

	vectors := make([][]float32, 0, len(items))
	ids := make([]string, 0, len(items))
	start := time.Now()
	for _, item := range items {
		rec := attribute.FromItemText(item.Name, item.Description, item.Category)
		res, err := embedder.Embed(ctx, rec.PromptText())
		if err != nil {
			logger.Fatal("Failed to embed item",
				zap.String("id", item.ID),
				zap.Error(err),
			)
		}
		vectors = append(vectors, res.Embedding)
		ids = append(ids, item.ID)
	}
	logger.Info("Items embedded",
		zap.Int("count", len(vectors)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := index.Save(vectors, ids, cfg.Index.VectorPath, cfg.Index.IDPath); err != nil {
		logger.Fatal("Failed to write index files", zap.Error(err))
	}

	logger.Info("Index build complete",
		zap.Int("vectors", len(vectors)),
		zap.String("vector_path", cfg.Index.VectorPath),
	)
}
