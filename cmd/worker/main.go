package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Web-Star-Studio/noturno-kimi/config"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/api"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/app"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/cache"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/database"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/errtrack"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/jobs"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/secrets"
)

func main() {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Service:     "noturno-worker",
		Environment: cfg.Environment,
	})
	log.Info("configuration loaded", "environment", cfg.Environment)

	if cfg.SecretsBackend != "env" {
		if err := loadSecrets(cfg, log); err != nil {
			log.Error("failed to load secrets", "error", err)
			os.Exit(1)
		}
	}

	if cfg.SentryDSN != "" {
		if err := errtrack.Init(cfg.SentryDSN, cfg.Environment); err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.Environment)
			defer errtrack.Flush(2 * time.Second)
		}
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx := context.Background()

	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, pool, &database.SSLConfig{Mode: cfg.DBSSLMode}, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info("database schema up to date")
	}

	var redis *cache.Client
	if cfg.RedisURL != "" {
		redis, err = cache.NewClient(cfg.RedisURL, "noturno:")
		if err != nil {
			log.Warn("identity cache disabled", "error", err)
			redis = nil
		} else {
			defer redis.Close()
			log.Info("identity cache enabled", "ttl", cfg.IdentityCacheTTL)
		}
	}

	a := app.New(cfg, db, redis, log)

	cronManager := jobs.NewCronManager(jobs.Config{
		ReaperSpec: cfg.SearchJobReaperSpec,
		StaleAfter: cfg.SearchJobStaleAfter,
	}, a.SearchJobs, a.Limiter, log)
	if err := cronManager.SetupJobs(); err != nil {
		return err
	}
	cronManager.Start()

	checks := map[string]api.Pinger{"database": db}
	if redis != nil {
		checks["cache"] = redis
	}
	ops := api.NewServer(api.Config{Addr: ":" + cfg.MetricsPort, Gatherer: a.Registry, Sentry: cfg.SentryDSN != ""}, checks, log)

	serveErr := make(chan error, 1)
	go func() { serveErr <- ops.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down")
	case err = <-serveErr:
		if err != nil {
			log.Error("ops server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cronManager.Stop(shutdownCtx)
	if shutdownErr := ops.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("ops server forced to shutdown", "error", shutdownErr)
	}
	log.Info("worker stopped gracefully")
	return err
}

func loadSecrets(cfg *config.Config, log logger.Logger) error {
	m, err := secrets.NewManager(secrets.Config{
		Backend:   cfg.SecretsBackend,
		AWSRegion: cfg.AWSRegion,
		Prefix:    cfg.SecretsPrefix,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return secrets.Apply(ctx, m, cfg, log)
}
