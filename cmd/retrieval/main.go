package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/config"
	redisIndex "github.com/postdeck/retrieval/internal/index/redis"
	logpkg "github.com/postdeck/retrieval/internal/logger"
	"github.com/postdeck/retrieval/internal/metrics"
	mongoStore "github.com/postdeck/retrieval/internal/store/mongo"
	chiTransport "github.com/postdeck/retrieval/internal/transport/chi"
	openaiEmb "github.com/postdeck/retrieval/internal/transport/openai"
	indexinguc "github.com/postdeck/retrieval/internal/usecase/indexing"
	searchuc "github.com/postdeck/retrieval/internal/usecase/search"
	"github.com/postdeck/retrieval/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting retrieval API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Index.Addrs),
		zap.Bool("store_configured", cfg.Store.MongoURI != ""),
		zap.Bool("embedding_configured", cfg.Embedding.APIKey != ""),
	)

	// Register domain metrics explicitly (no init())
	metrics.Register()

	// Lazy sources: a missing backing service degrades search rather than
	// failing startup.
	embedders := openaiEmb.NewSource(openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	}, logger)

	indexes := redisIndex.NewSource(redisIndex.Config{
		Addrs:           cfg.Index.Addrs,
		Username:        cfg.Index.Username,
		Password:        cfg.Index.Password,
		KeyPrefix:       cfg.Index.KeyPrefix,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.Index.HNSWM,
		HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
	}, logger)
	defer indexes.Close()

	stores := mongoStore.NewSource(mongoStore.Config{
		URI:      cfg.Store.MongoURI,
		Database: cfg.Store.Database,
	}, logger)
	defer stores.Close(context.Background())

	// Create use case services
	weights := searchuc.NewWeights(
		cfg.Search.FallbackWeights.Coverage,
		cfg.Search.FallbackWeights.FrequencyCap,
		cfg.Search.FallbackWeights.ExactBonus,
		cfg.Search.FallbackWeights.LengthPenaltyCap,
		cfg.Search.FallbackWeights.Floor,
	)
	searchSvc := searchuc.New(stores, embedders, indexes, logger).
		WithLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK).
		WithFallback(weights, cfg.Search.FallbackWindow, cfg.Store.OwnerField)
	indexingSvc := indexinguc.New(stores, embedders, indexes, logger).
		WithBulk(cfg.Store.OwnerField, cfg.Search.BulkLimit)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, indexingSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
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
					_ = json.NewEncoder(w).Encode(map[string]any{
						"success": false,
						"error":   "internal error",
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
