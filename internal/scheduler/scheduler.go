package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"smabot/internal/config"
)

// Runner is the trading engine as seen by the scheduler.
type Runner interface {
	RunCycle(ctx context.Context) error
	LogPortfolio(ctx context.Context, label string)
}

// Scheduler fires the trading iteration and the market open/close summaries
// on cron specs evaluated in the exchange timezone.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context

	// AfterCycle runs after every iteration, successful or not.
	AfterCycle func()
}

func New(ctx context.Context, runner Runner, timezone string) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		Runner: runner,
		Ctx:    ctx,
	}, nil
}

// RegisterAll registers the iteration and, when configured, the before-open
// and after-close summaries.
func (s *Scheduler) RegisterAll(cfg config.ScheduleConfig) error {
	if _, err := s.Cron.AddFunc(cfg.IterationCron, s.RunNow); err != nil {
		return fmt.Errorf("register iteration: %w", err)
	}
	if cfg.BeforeOpenCron != "" {
		if _, err := s.Cron.AddFunc(cfg.BeforeOpenCron, func() { s.Runner.LogPortfolio(s.Ctx, "before market open") }); err != nil {
			return fmt.Errorf("register before open: %w", err)
		}
	}
	if cfg.AfterCloseCron != "" {
		if _, err := s.Cron.AddFunc(cfg.AfterCloseCron, func() { s.Runner.LogPortfolio(s.Ctx, "after market close") }); err != nil {
			return fmt.Errorf("register after close: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	for _, entry := range s.Cron.Entries() {
		slog.Info("scheduled", "entry", entry.ID, "next", entry.Next)
	}
	slog.Info("scheduler started")
}

// Stop waits for a running iteration to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunNow executes one iteration immediately.
func (s *Scheduler) RunNow() {
	start := time.Now()
	slog.Info("iteration started")
	if err := s.Runner.RunCycle(s.Ctx); err != nil {
		slog.Error("iteration failed", "error", err)
	} else {
		slog.Info("iteration finished", "elapsed", time.Since(start))
	}
	if s.AfterCycle != nil {
		s.AfterCycle()
	}
}
