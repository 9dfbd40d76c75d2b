package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/faultline/internal/config"
	"github.com/fyrsmithlabs/faultline/internal/confidence"
	"github.com/fyrsmithlabs/faultline/internal/engine"
	"github.com/fyrsmithlabs/faultline/internal/learning"
	"github.com/fyrsmithlabs/faultline/internal/logging"
	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/monitor"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
	"github.com/fyrsmithlabs/faultline/internal/telemetry"
)

// app wires the analysis stack together for one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	tel     *telemetry.Telemetry
	store   *pattern.Store
	engine  *engine.Engine
	learner *learning.Engine
	monitor *monitor.ResourceMonitor

	// unknownsPath holds the aggregated unrecognized failures between
	// invocations, next to the learned partition.
	unknownsPath string
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	logger, err := logging.New(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	store := pattern.NewStore(cfg.Patterns.Dir, logger)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load pattern catalog: %w", err)
	}
	if cfg.Patterns.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Warn("pattern watcher stopped", zap.Error(err))
			}
		}()
	}

	matcher, err := match.NewEngine(cfg.Engine.MatchConfig(), store, logger)
	if err != nil {
		return nil, fmt.Errorf("init match engine: %w", err)
	}

	calc := confidence.NewCalculator(confidence.WithLogger(logger))

	eng, err := engine.New(store, matcher, calc, logger)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	learner, err := learning.New(cfg.Learning, store, logger)
	if err != nil {
		return nil, fmt.Errorf("init learning engine: %w", err)
	}
	eng.SetUnknownSink(learner)

	unknownsPath := filepath.Join(cfg.Patterns.Dir, "unknowns.json")
	if err := learner.LoadUnknowns(unknownsPath); err != nil {
		logger.Warn("failed to load unknowns ledger", zap.Error(err))
	}

	mon := monitor.New(cfg.Monitor.MemoryThresholdBytes, logger)
	eng.SetMonitor(mon)

	return &app{
		cfg:          cfg,
		logger:       logger,
		tel:          tel,
		store:        store,
		engine:       eng,
		learner:      learner,
		monitor:      mon,
		unknownsPath: unknownsPath,
	}, nil
}

// close persists catalog changes and flushes telemetry.
func (a *app) close(ctx context.Context) {
	if err := a.store.Save(ctx); err != nil {
		a.logger.Warn("failed to save pattern catalog", zap.Error(err))
	}
	if err := a.learner.SaveUnknowns(a.unknownsPath); err != nil {
		a.logger.Warn("failed to save unknowns ledger", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

// engineOptions builds the per-call options from config defaults.
func (a *app) engineOptions() *engine.Options {
	opts := engine.DefaultOptions()
	if a.cfg.Engine.ConfidenceThreshold > 0 {
		opts.ConfidenceThreshold = a.cfg.Engine.ConfidenceThreshold
	}
	if a.cfg.Engine.MaxPatterns > 0 {
		opts.MaxPatterns = a.cfg.Engine.MaxPatterns
	}
	return opts
}
