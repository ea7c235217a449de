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

	"github.com/orbital-cloud/usagemeter/internal/config"
	"github.com/orbital-cloud/usagemeter/internal/db"
	dbRedis "github.com/orbital-cloud/usagemeter/internal/db/redis"
	logpkg "github.com/orbital-cloud/usagemeter/internal/logger"
	"github.com/orbital-cloud/usagemeter/internal/metrics"
	"github.com/orbital-cloud/usagemeter/internal/repository/reportcache"
	"github.com/orbital-cloud/usagemeter/internal/repository/snapshot"
	chiTransport "github.com/orbital-cloud/usagemeter/internal/transport/chi"
	"github.com/orbital-cloud/usagemeter/internal/transport/orbital"
	healthuc "github.com/orbital-cloud/usagemeter/internal/usecase/health"
	usageuc "github.com/orbital-cloud/usagemeter/internal/usecase/usage"
	"github.com/orbital-cloud/usagemeter/internal/version"
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

	logger.Info("Starting usagemeter API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Database is optional: without it the service runs with the
	// in-memory report cache only and no snapshots.
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	} else {
		logger.Info("Persistence disabled, running in-memory only")
	}

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()

	// Upstream billing API client
	client := orbital.NewClient(&orbital.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: time.Duration(cfg.Upstream.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Report cache, write-through persisted when the database is available
	cache := reportcache.New(client, metrics.ReportCacheTotal, logger)
	if store != nil {
		reportTTL := time.Duration(cfg.Cache.ReportTTLMin) * time.Minute
		cache.WithPersistence(store, cfg.Cache.KeyPrefix, reportTTL)
	}

	// Usage service
	policy, err := usageuc.ParseFallbackPolicy(cfg.Usage.FallbackPolicy)
	if err != nil {
		logger.Fatal("Invalid fallback policy", zap.Error(err))
	}
	usageSvc := usageuc.New(client, cache, logger).WithFallbackPolicy(policy)

	// Snapshot store
	var snapshots *snapshot.Store
	if store != nil {
		snapshotTTL := time.Duration(cfg.Cache.SnapshotTTLDays) * 24 * time.Hour
		snapshots = snapshot.New(store, cfg.Cache.KeyPrefix, snapshotTTL)
		usageSvc.WithSnapshots(snapshots)
	}

	// Health service. A typed nil *Store must not be wrapped in the
	// DBPinger interface, hence the explicit check.
	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger)

	server := chiTransport.NewServer(usageSvc, snapshots, healthSvc, logger)

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

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
