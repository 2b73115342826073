// Geographic voter segmentation engine server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/application/jobrunner"
	"github.com/voteops/segengine/internal/application/segengine"
	"github.com/voteops/segengine/internal/config"
	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/api/rest"
	"github.com/voteops/segengine/internal/infrastructure/logger"
	"github.com/voteops/segengine/internal/infrastructure/storage"
	"github.com/voteops/segengine/internal/infrastructure/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("starting segmentation engine server",
		"port", cfg.Server.Port,
		"strategy", cfg.Segmentation.Strategy,
		"worker_count", cfg.Segmentation.WorkerCount,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		appLogger.Error("failed to initialize tracing provider", "error", err)
		os.Exit(1)
	}
	if tracingProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
				appLogger.Error("tracing shutdown failed", "error", err)
			}
		}()
		appLogger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	dbConfig := &storage.Config{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinConnections,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime,
		ConnMaxIdleTime: cfg.Database.MaxIdleTime,
		Debug:           cfg.Logging.Level == "debug",
	}
	db, err := storage.NewDB(dbConfig)
	if err != nil {
		appLogger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	appLogger.Info("database connected", "max_conns", cfg.Database.MaxConnections)

	jobRepo := storage.NewJobRepository(db)
	exceptionRepo := storage.NewExceptionRepository(db)
	segRepo := storage.NewSegmentRepository(db)

	engineRepos := segengine.Repositories{
		NewHierarchyRepository: func(tx bun.IDB) repository.HierarchyRepository { return storage.NewHierarchyRepository(tx) },
		NewSegmentRepository:   func(tx bun.IDB) repository.SegmentRepository { return storage.NewSegmentRepository(tx) },
		NewAuditRepository:     func(tx bun.IDB) repository.AuditRepository { return storage.NewAuditRepository(tx) },
		NewExceptionRepository: func(tx bun.IDB) repository.ExceptionRepository { return storage.NewExceptionRepository(tx) },
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Segmentation.WorkerCount; i++ {
		runner := jobrunner.New(jobrunner.Config{
			DB:            db,
			JobRepo:       jobRepo,
			ExceptionRepo: exceptionRepo,
			EngineRepos:   engineRepos,
			Strategy:      segengine.Strategy(cfg.Segmentation.Strategy),
			PollInterval:  cfg.Segmentation.PollInterval,
			WorkerID:      i,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx)
		}()
	}

	router := rest.NewRouter(rest.Dependencies{
		DB:            db,
		JobRepo:       jobRepo,
		ExceptionRepo: exceptionRepo,
		SegmentRepo:   segRepo,
		Logger:        appLogger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("http server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		appLogger.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("graceful http shutdown failed", "error", err)
			_ = server.Close()
		}

		wg.Wait()
		appLogger.Info("server stopped")
	}
}
