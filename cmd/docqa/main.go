package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docqahq/docqa/internal/ai"
	"github.com/docqahq/docqa/internal/config"
	"github.com/docqahq/docqa/internal/embedcache"
	"github.com/docqahq/docqa/internal/handler"
	"github.com/docqahq/docqa/internal/job"
	"github.com/docqahq/docqa/internal/middleware"
	"github.com/docqahq/docqa/internal/ratelimit"
	"github.com/docqahq/docqa/internal/repo"
	"github.com/docqahq/docqa/internal/schedule"
	"github.com/docqahq/docqa/internal/service"
	"github.com/docqahq/docqa/internal/vectorstore"
	"github.com/docqahq/docqa/internal/vectorstore/memory"
	"github.com/docqahq/docqa/internal/vectorstore/pgvec"
	"github.com/docqahq/docqa/internal/vectorstore/qdrant"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "docqa rag backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docqa server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = repo.Open(cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		if cfg.Postgres.MigrationsDir != "" {
			if err := repo.ApplyMigrations(db, cfg.Postgres.MigrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		if err := repo.NewEmbeddingCacheRepo(db).VerifyDimension(ctx, cfg.Rag.Dimension); err != nil {
			return fmt.Errorf("embedding cache schema: %w", err)
		}
	}

	index, err := buildVectorStore(cfg, db)
	if err != nil {
		return err
	}
	if err := index.Init(ctx); err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	embedder, err := buildEmbedder(cfg, db)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	var documents *repo.DocumentRepo
	if db != nil {
		documents = repo.NewDocumentRepo(db)
	}

	ragService := service.NewRagService(
		embedder,
		generator,
		index,
		documents,
		ai.NewChunker(cfg.Rag.MaxChunkSize, cfg.Rag.ChunkOverlap),
		service.RagOptions{
			TopK:            cfg.Rag.TopK,
			EmbedWorkers:    cfg.Rag.EmbedWorkers,
			HistoryWindow:   cfg.Rag.HistoryWindow,
			NoMatchPolicy:   cfg.Rag.NoMatchPolicy,
			FallbackMessage: cfg.Rag.FallbackMessage,
			GenTimeout:      time.Duration(cfg.AI.TimeoutSec) * time.Second,
			VectorTimeout:   time.Duration(cfg.VectorStore.TimeoutSec) * time.Second,
		},
	)

	limiter := ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRateLimitSweepJob(limiter), "*/10 * * * *"); err != nil {
		return err
	}
	if db != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(repo.NewEmbeddingCacheRepo(db), cfg.AI.CacheMaxDays)
		if err := scheduler.AddJob(cleanup, "30 3 * * *"); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.CORSOrigins))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.RegisterRoutes(engine.Group("/api/v1"), handler.RouterDeps{
		Rag:       handler.NewRagHandler(ragService),
		Limiter:   limiter,
		JWTSecret: []byte(cfg.JWTSecret),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler: engine,
	}
	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildVectorStore(cfg *config.Config, db *sql.DB) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "qdrant":
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Collection,
			Dimension:  cfg.Rag.Dimension,
			Timeout:    time.Duration(cfg.VectorStore.TimeoutSec) * time.Second,
		}), nil
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector store requires postgres.dsn")
		}
		return pgvec.NewStore(db, cfg.Rag.Dimension), nil
	case "memory":
		return memory.NewStore(cfg.Rag.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.VectorStore.Type)
	}
}

func buildGenerator(cfg *config.Config) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, 1+len(cfg.AI.GeneratorFallbacks))
	for _, pc := range append([]config.ProviderConfig{cfg.AI.Generator}, cfg.AI.GeneratorFallbacks...) {
		provider, err := ai.NewProvider(pc.Provider, pc.Args)
		if err != nil {
			return nil, fmt.Errorf("init generator provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      pc.Provider,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return ai.NewGroupGenerator(entries), nil
}

// buildEmbedder stacks the decorators inside out: provider (or the
// fallback chain), then the dimension check, then the relational
// cache, then the in-process LRU, then retry. The dimension check
// sits below both caches so a wrong-size vector is rejected before it
// can be stored; a transient provider glitch must never leave a
// poisoned entry behind. Lookups hit the LRU first and fall through
// to the relational cache before any live call.
func buildEmbedder(cfg *config.Config, db *sql.DB) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, 1+len(cfg.AI.EmbedderFallbacks))
	for _, pc := range append([]config.ProviderConfig{cfg.AI.Embedder}, cfg.AI.EmbedderFallbacks...) {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Args)
		if err != nil {
			return nil, fmt.Errorf("init embedder provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     pc.Provider,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	embedder := entries[0].Embedder
	if len(entries) > 1 {
		embedder = ai.NewGroupEmbedder(entries)
	}
	embedder = ai.WrapDimensionCheckToEmbedder(embedder, cfg.Rag.Dimension)
	if db != nil {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, repo.NewEmbeddingCacheRepo(db))
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMin)*time.Minute)
	embedder = ai.WrapRetryToEmbedder(embedder, ai.RetryPolicy{
		MaxAttempts: cfg.AI.MaxRetries,
		BaseDelay:   time.Duration(cfg.AI.BaseDelayMS) * time.Millisecond,
	})
	return embedder, nil
}
