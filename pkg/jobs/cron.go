// Package jobs runs the scheduled maintenance tasks of the worker.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// StaleReaper fails search jobs that stopped reporting progress
type StaleReaper interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Pruner drops idle rate limiter state
type Pruner interface {
	Prune() int
}

// Config controls the schedules of the maintenance jobs
type Config struct {
	ReaperSpec string
	StaleAfter time.Duration
	PruneSpec  string
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReaperSpec == "" {
		c.ReaperSpec = "@every 5m"
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.PruneSpec == "" {
		c.PruneSpec = "@every 10m"
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

// cronLogger routes scheduler events to the service logger
type cronLogger struct{ log logger.Logger }

func (l cronLogger) Info(msg string, kv ...any) { l.log.Debug("cron: "+msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kv, "error", err)...)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	cfg    Config
	reaper StaleReaper
	pruner Pruner
	logger logger.Logger
}

// NewCronManager creates a new cron manager. A nil pruner skips the
// limiter job.
func NewCronManager(cfg Config, reaper StaleReaper, pruner Pruner, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Default()
	}
	cl := cronLogger{log}
	return &CronManager{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		cfg:    cfg.withDefaults(),
		reaper: reaper,
		pruner: pruner,
		logger: log,
	}
}

// SetupJobs registers the jobs on their schedules
func (cm *CronManager) SetupJobs() error {
	if _, err := cm.cron.AddFunc(cm.cfg.ReaperSpec, func() { cm.ReapStale(context.Background()) }); err != nil {
		return err
	}
	if cm.pruner != nil {
		if _, err := cm.cron.AddFunc(cm.cfg.PruneSpec, cm.PruneLimiter); err != nil {
			return err
		}
	}

	cm.logger.Info("cron jobs configured",
		"reaper_spec", cm.cfg.ReaperSpec,
		"stale_after", cm.cfg.StaleAfter,
		"prune_spec", cm.cfg.PruneSpec,
	)
	return nil
}

// ReapStale runs one pass of the stale search job reaper
func (cm *CronManager) ReapStale(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, cm.cfg.Timeout)
	defer cancel()

	n, err := cm.reaper.FailStale(ctx, cm.cfg.StaleAfter)
	if err != nil {
		cm.logger.Error("stale search job reaper failed", "error", err, "failed_jobs", n)
		return n
	}
	if n > 0 {
		cm.logger.Info("stale search jobs failed", "count", n)
	}
	return n
}

// PruneLimiter drops idle rate limiter buckets
func (cm *CronManager) PruneLimiter() {
	if n := cm.pruner.Prune(); n > 0 {
		cm.logger.Debug("rate limiter pruned", "buckets", n)
	}
}

// Entries returns the number of registered jobs
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
	}
}
