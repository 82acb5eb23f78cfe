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
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

	"github.com/carterperez-dev/academic-core/internal/admin"
	"github.com/carterperez-dev/academic-core/internal/auth"
	"github.com/carterperez-dev/academic-core/internal/config"
	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/course"
	"github.com/carterperez-dev/academic-core/internal/enrollment"
	"github.com/carterperez-dev/academic-core/internal/health"
	"github.com/carterperez-dev/academic-core/internal/jobs"
	"github.com/carterperez-dev/academic-core/internal/middleware"
	"github.com/carterperez-dev/academic-core/internal/profile"
	"github.com/carterperez-dev/academic-core/internal/rbac"
	"github.com/carterperez-dev/academic-core/internal/server"
	"github.com/carterperez-dev/academic-core/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	bootstrap := flag.Bool("bootstrap", false, "seed the permission catalog and default roles before serving")
	flag.Parse()

	if err := run(*configPath, *migrate, *bootstrap); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, migrate, bootstrap bool) error {
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

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	metrics := core.NewMetrics("academic")

	rbacSvc := rbac.NewService(rbac.NewRepository(db.DB))
	if bootstrap {
		if err := rbacSvc.Bootstrap(ctx); err != nil {
			return err
		}
	}

	userSvc := user.NewService(user.NewRepository(db.DB))
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		userSvc,
		redis,
		auth.NewTOTP(cfg.TOTP),
		metrics,
	)
	authHandler := auth.NewHandler(authSvc)

	profileHandler := profile.NewHandler(
		profile.NewService(profile.NewRepository(db.DB), rbacSvc),
	)
	courseHandler := course.NewHandler(
		course.NewService(course.NewRepository(db.DB)),
	)
	enrollmentHandler := enrollment.NewHandler(
		enrollment.NewService(enrollment.NewRepository(db.DB), metrics),
	)

	redisOpts, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		return err
	}
	jobsClient := jobs.NewClient(redisOpts)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Roles:      rbacSvc,
		Tasks:      jobsClient,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(chimw.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.NewGlobalRateLimiter(redis.Client, cfg.RateLimit).Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	healthHandler.RegisterRoutes(router)

	router.Handle("/metrics", metrics.Handler())
	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	writeLimit := middleware.NewEndpointRateLimiter(redis.Client, cfg.RateLimit.WriteRequests).Handler
	guard := middleware.BruteForceGuard(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, guard)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(middleware.LoadActor(rbacSvc))

			userHandler.RegisterRoutes(r)
			profileHandler.RegisterRoutes(r)
			courseHandler.RegisterRoutes(r)
			enrollmentHandler.RegisterRoutes(r, writeLimit)
			adminHandler.RegisterRoutes(r)
		})
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := jobsClient.Close(); err != nil {
		logger.Error("jobs client close error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
