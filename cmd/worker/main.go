// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/carterperez-dev/academic-core/internal/auth"
	"github.com/carterperez-dev/academic-core/internal/config"
	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/jobs"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	redisOpts, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		return err
	}

	sessions := auth.NewRepository(db.DB)
	purge := jobs.NewPurgeJob(func(ctx context.Context) (int64, error) {
		return auth.PurgeExpiredSessions(ctx, sessions)
	}, logger)

	purgeTask, err := jobs.NewPurgeExpiredTokensTask("scheduler")
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.Worker.Concurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPurgeExpiredTokens, Handler: purge.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.Worker.PurgeSchedule, Task: purgeTask},
		},
	})
	if err != nil {
		return err
	}

	logger.Info("worker starting",
		"concurrency", cfg.Worker.Concurrency,
		"purge_schedule", cfg.Worker.PurgeSchedule,
	)

	return worker.Run(ctx)
}
