package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"smabot/internal/broker"
	"smabot/internal/config"
	"smabot/internal/engine"
	"smabot/internal/md"
	"smabot/internal/metrics"
	"smabot/internal/recorder"
	"smabot/internal/scheduler"
	"smabot/internal/state"
	"smabot/internal/strategy"
)

func main() {
	resetHalt := flag.Bool("reset-halt", false, "clear a latched drawdown halt at startup")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	runID := generateRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath)
	if err != nil {
		log.Fatalf("decision logger error: %v", err)
	}
	defer closeLogged("decision logger", decisions)
	sinks := []engine.DecisionSink{decisions}

	var rec *recorder.SQLiteRecorder
	if cfg.DecisionsDB != "" {
		if rec, err = recorder.NewSQLiteRecorder(cfg.DecisionsDB); err != nil {
			slog.Warn("sqlite recorder disabled", "error", err)
			rec = nil
		} else {
			sinks = append(sinks, rec)
			defer closeLogged("sqlite recorder", rec)
		}
	}

	store := state.NewStore()
	if err := store.Load(cfg.CheckpointPath); err == nil {
		slog.Info("loaded checkpoint", "path", cfg.CheckpointPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("checkpoint ignored", "path", cfg.CheckpointPath, "error", err)
	}
	save := func() {
		if err := store.Save(cfg.CheckpointPath); err != nil {
			slog.Error("failed to save checkpoint", "error", err)
		}
	}

	var (
		brokerClient engine.Broker
		bars         engine.BarSource
	)
	if cfg.Mode == config.ModePaper {
		brokerClient = broker.New(cfg.APIKey, cfg.APISecret, cfg.PaperBaseURL)
		bars = md.NewHistory(cfg.APIKey, cfg.APISecret, cfg.Feed)
	}
	strategyImpl := strategy.NewSMAMomentum(cfg.Strategy.Thresholds())
	engineImpl := engine.New(cfg, strategyImpl, brokerClient, bars, store, runID, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *resetHalt {
		if err := engineImpl.ResetHalt(ctx); err != nil {
			log.Fatalf("reset halt: %v", err)
		}
		save()
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		slog.Info("metrics listening", "addr", cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("starting bot", "mode", cfg.Mode, "run_id", runID, "feed", cfg.Feed)
	switch cfg.Mode {
	case config.ModePaper:
		sched, err := scheduler.New(ctx, engineImpl, cfg.Schedule.Timezone)
		if err != nil {
			log.Fatalf("scheduler error: %v", err)
		}
		sched.AfterCycle = save
		if err := sched.RegisterAll(cfg.Schedule); err != nil {
			log.Fatalf("register schedule: %v", err)
		}
		go engine.ReconcileLoop(ctx, engineImpl, cfg.Reconcile)
		sched.Start()
		if cfg.Schedule.RunOnStart {
			go sched.RunNow()
		}
		<-ctx.Done()
		slog.Info("shutdown signal received")
		sched.Stop()

	case config.ModeStream:
		symbols := engineImpl.Symbols(cfg.Risk.PaperEquity)
		history := md.NewHistory(cfg.APIKey, cfg.APISecret, cfg.Feed)
		engineImpl.Warmup(ctx, history.MinuteBars, symbols)
		slog.Info("streaming", "symbols", symbols)
		if err := md.StartStream(ctx, cfg.APIKey, cfg.APISecret, cfg.Feed, symbols, func(bar md.Bar) {
			engineImpl.OnBar(ctx, bar)
		}); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("market data stream stopped", "error", err)
		}
	}

	save()
	if rec != nil {
		if counts, err := rec.CountByResult(runID); err == nil {
			slog.Info("run summary", "run_id", runID, "results", counts)
		}
	}
	slog.Info("bot shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + uuid.NewString()[:8]
}

func closeLogged(name string, c io.Closer) error {
	if err := c.Close(); err != nil {
		slog.Error("failed to close "+name, "error", err)
		return err
	}
	return nil
}
