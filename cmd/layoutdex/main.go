package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/capability/stub"
	"github.com/kailas-cloud/layoutdex/internal/config"
	"github.com/kailas-cloud/layoutdex/internal/corpus"
	"github.com/kailas-cloud/layoutdex/internal/db"
	dbFs "github.com/kailas-cloud/layoutdex/internal/db/fs"
	dbRedis "github.com/kailas-cloud/layoutdex/internal/db/redis"
	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/index"
	logpkg "github.com/kailas-cloud/layoutdex/internal/logger"
	"github.com/kailas-cloud/layoutdex/internal/metrics"
	"github.com/kailas-cloud/layoutdex/internal/repository/artifact"
	"github.com/kailas-cloud/layoutdex/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/layoutdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/layoutdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/layoutdex/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/layoutdex/internal/usecase/pipeline"
	retrievaluc "github.com/kailas-cloud/layoutdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/layoutdex/internal/version"
)

func main() {
	// .env is optional; config falls back to ${VAR:-default} expansion.
	_ = godotenv.Load()

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

	logger.Info("Starting layoutdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("corpus_path", cfg.Corpus.Path),
	)

	// Create artifact/cache store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "fs":
		store, err = dbFs.NewStore(cfg.Database.Path)
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to artifact store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Load the layout corpus — fail fast, the service is useless without it.
	corpusStore, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.String("path", cfg.Corpus.Path), zap.Error(err))
	}
	logger.Info("Corpus loaded", zap.Int("records", corpusStore.Len()))

	embedder := buildEmbedder(cfg, store, logger)

	// Restore the index from persisted artifacts; rebuild on any mismatch
	// (corpus changed, embedding dim changed, artifacts missing).
	ix := index.New(cfg.Index.Name)
	blobs := artifact.New(store)
	if err := ix.Load(ctx, blobs, corpusStore.All()); err != nil {
		if !errors.Is(err, domain.ErrIndexLoadMismatch) {
			logger.Warn("Failed to load index artifacts", zap.Error(err))
		}
		logger.Info("Building index from corpus", zap.Int("records", corpusStore.Len()))
		if err := ix.Build(ctx, corpusStore.All(), embedder); err != nil {
			logger.Fatal("Failed to build index", zap.Error(err))
		}
		if err := ix.Persist(ctx, blobs); err != nil {
			logger.Warn("Failed to persist index artifacts", zap.Error(err))
		}
	}
	logger.Info("Index ready",
		zap.String("name", ix.Name()),
		zap.Int("documents", ix.Stats().TotalDocuments),
		zap.Int("dimensions", ix.Stats().EmbeddingDim),
	)

	normalizer, analyzer, reformulator, reranker, selector := buildCapabilities(cfg, logger)

	retrievalSvc := retrievaluc.New(corpusStore, ix, embedder, reranker, blobs, logger).
		WithTimeouts(
			time.Duration(cfg.Retrieval.SearchTimeoutSec)*time.Second,
			time.Duration(cfg.Retrieval.RerankTimeoutSec)*time.Second,
		)

	pipelineSvc := pipelineuc.New(
		normalizer, analyzer, reformulator,
		retrievalSvc, selector, corpusStore,
		pipelineuc.Options{
			TopK:   cfg.Retrieval.TopK,
			FinalK: cfg.Retrieval.FinalK,
			Rerank: cfg.Retrieval.Rerank,
		},
		logger,
	)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), indexDocCounter{ix})

	server := chiTransport.NewServer(retrievalSvc, pipelineSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// buildEmbedder assembles the embedder chain: provider -> cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		base = openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	default:
		base = stub.Embedder{}
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
	)

	if store == nil {
		return base
	}
	return embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
}

// buildCapabilities wires the language-model capabilities, either the
// OpenAI-compatible client or the deterministic stubs.
func buildCapabilities(cfg config.Config, logger *zap.Logger) (
	domain.Normalizer, domain.Analyzer, domain.Reformulator, domain.Reranker, domain.Selector,
) {
	if cfg.LLM.Provider == "openai" {
		client := openaiTransport.NewClient(&openaiTransport.ClientConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		logger.Info("LLM capabilities created",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
		)
		return client, client, client, client, client
	}

	logger.Info("LLM capabilities created", zap.String("provider", "stub"))
	return stub.Normalizer{}, stub.Analyzer{}, stub.Reformulator{}, stub.Reranker{}, stub.Selector{}
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

// indexDocCounter adapts index.Stats to health.IndexReader.
type indexDocCounter struct {
	ix *index.Index
}

func (c indexDocCounter) TotalDocuments() int { return c.ix.Stats().TotalDocuments }

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
