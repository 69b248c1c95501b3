// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tranche-workers/internal/allocation"
	"tranche-workers/internal/api"
	"tranche-workers/internal/common/aws"
	"tranche-workers/internal/common/camunda"
	"tranche-workers/internal/common/config"
	"tranche-workers/internal/common/database"
	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/observability"
	"tranche-workers/internal/common/scoring"
	"tranche-workers/internal/pooling"
	"tranche-workers/internal/store"

	at "tranche-workers/internal/workers/pooling/allocate-tranches"
	glp "tranche-workers/internal/workers/pooling/group-loan-pools"
	rt "tranche-workers/internal/workers/pooling/refresh-thresholds"
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
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewService(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Observability ---
	sampleRatio := 0.0
	if cfg.Observability.TracingEnabled {
		sampleRatio = cfg.Observability.SampleRatio
	}
	obs, err := observability.New(observability.Options{
		ServiceName: cfg.Observability.ServiceName,
		SampleRatio: sampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

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

	if err := database.Migrate(ctx, pg.GetDB()); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Threshold configuration ---
	var source store.ThresholdSource = store.NewPostgresThresholdSource(pg.GetDB())
	if cfg.Pooling.ThresholdSource == config.ThresholdSourceFile {
		source = store.NewFileThresholdSource(cfg.Pooling.ThresholdsFile)
	}
	thresholds := store.NewThresholdStore(source, redis.GetClient(), cfg.Pooling.CacheTTLDuration(), log)

	if cfg.Pooling.WatchFile && cfg.Pooling.ThresholdSource == config.ThresholdSourceFile {
		watcher, err := store.NewThresholdWatcher(thresholds, cfg.Pooling.ThresholdsFile, log)
		if err != nil {
			zapLog.Fatal("threshold watcher init failed", zap.Error(err))
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				zapLog.Error("threshold watcher stopped", zap.Error(err))
			}
		}()
	}

	refresher := store.NewThresholdRefresher(thresholds, cfg.Pooling.RefreshSchedule, log)
	if err := refresher.Start(ctx); err != nil {
		zapLog.Fatal("threshold refresher init failed", zap.Error(err))
	}

	// --- External services ---
	var scorer scoring.Predictor
	if cfg.Pooling.Scoring.Enabled() {
		scorer = scoring.NewClient(cfg.Pooling.Scoring)
		zapLog.Info("risk scoring enabled", zap.String("url", cfg.Pooling.Scoring.URL))
	}

	var notifier allocation.Notifier
	if cfg.Pooling.Notifications.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Pooling.Notifications.Region, cfg.Pooling.Notifications.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = sns
	}

	loans := store.NewLoanRepository(pg.GetDB(), cfg.Pooling.MaxSnapshotSize)
	service := allocation.NewService(allocation.Dependencies{
		Engine:                  pooling.NewEngine(nil),
		Loans:                   loans,
		Thresholds:              thresholds,
		Scorer:                  scorer,
		Notifier:                notifier,
		Observability:           obs,
		Logger:                  log,
		MaxSnapshotSize:         cfg.Pooling.MaxSnapshotSize,
		DefaultThresholdVersion: cfg.Pooling.ThresholdVersion,
	})

	// --- Workers ---
	client := zeebe.GetClient()
	var workers []*camunda.Worker
	register := func(taskType string, build func(wcfg config.WorkerConfig) (camunda.HandlerFunc, error)) {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler, err := build(wcfg)
		if err != nil {
			zapLog.Fatal("invalid worker config", zap.String("taskType", taskType), zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(client, taskType, wcfg, handler, zapLog))
	}

	register(at.TaskType, func(wcfg config.WorkerConfig) (camunda.HandlerFunc, error) {
		c := at.NewConfig(wcfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return at.NewHandler(c, service, log).WithObservability(obs).Handle, nil
	})
	register(glp.TaskType, func(wcfg config.WorkerConfig) (camunda.HandlerFunc, error) {
		c := glp.NewConfig(wcfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return glp.NewHandler(c, loans, store.NewPoolRepository(pg.GetDB()), scorer, log).WithObservability(obs).Handle, nil
	})
	register(rt.TaskType, func(wcfg config.WorkerConfig) (camunda.HandlerFunc, error) {
		c := rt.NewConfig(wcfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return rt.NewHandler(c, thresholds, log).WithObservability(obs).Handle, nil
	})

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- HTTP: health, metrics, allocation API ---
	server := api.New(api.Options{
		Config:     cfg.HTTP,
		Allocator:  service,
		Thresholds: thresholds,
		Checks: map[string]api.Check{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
			"zeebe":    zeebe.HealthCheck,
		},
		Logger: log,
	})
	go func() {
		if err := server.Start(); err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	refresher.Stop()

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down observability", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
