// cmd/api-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nearserve/internal/common/auth"
	commonaws "nearserve/internal/common/aws"
	"nearserve/internal/common/config"
	"nearserve/internal/common/database"
	"nearserve/internal/common/logger"
	"nearserve/internal/common/observability"
	"nearserve/internal/jobs"
	"nearserve/internal/notification"
	"nearserve/internal/reputation"
	"nearserve/internal/search"
	httptransport "nearserve/internal/transport/http"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Notification channels (optional) ---
	var snsClient notification.SNSService
	var sesClient notification.SESService
	if cfg.Notifications.Push.Enabled {
		client, err := commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		snsClient = client
	}
	if cfg.Notifications.Email.Enabled {
		client, err := commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		sesClient = client
	}

	// --- DI ---
	db := pg.GetDB()
	dispatcher := notification.NewDispatcher(db, cfg.Notifications, snsClient, sesClient, log)
	store := reputation.NewStore(db)
	reputationSvc := reputation.NewService(db, store, rdb.GetClient(), dispatcher, reputation.Config{
		ProfileCacheTTL: time.Duration(cfg.Reputation.ProfileCacheTTL) * time.Second,
		HistoryLimit:    cfg.Reputation.HistoryLimit,
	}, log)
	searchSvc := search.NewService(db, log)
	jobTracker := jobs.NewTracker(db, log)
	sessions := auth.NewSessionResolver(db, rdb.GetClient(),
		time.Duration(cfg.Auth.SessionCacheTTL)*time.Second, log)

	handler := httptransport.NewHandler(reputationSvc, searchSvc, jobTracker, log)
	router := httptransport.Routes(handler, sessions, log, obs)

	// Debug server: pprof (via DefaultServeMux import) and prometheus metrics.
	go func() {
		debugMux := http.NewServeMux()
		debugMux.Handle("/metrics", promhttp.Handler())
		debugMux.Handle("/debug/", http.DefaultServeMux)
		addr := fmt.Sprintf(":%d", cfg.Server.DebugPort)
		zapLog.Info("debug server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, debugMux); err != nil && err != http.ErrServerClosed {
			zapLog.Error("debug server stopped", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}

	zapLog.Info("server stopped")
}
