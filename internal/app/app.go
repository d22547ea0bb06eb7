// Package app wires configuration, the compliance engine, the result archive
// and the REST server together
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/keo"
	"github.com/chrissnell/daylight/internal/managers"
	"github.com/chrissnell/daylight/internal/metrics"
	"github.com/chrissnell/daylight/pkg/building"
	"github.com/chrissnell/daylight/pkg/config"
	"go.uber.org/zap"
)

// ErrNothingToServe is returned by Run when the REST server is disabled
var ErrNothingToServe = errors.New("REST server is disabled (rest.enabled is false)")

// App represents the main application
type App struct {
	cfg     *config.ConfigData
	logger  *zap.SugaredLogger
	metrics *metrics.Collector
	engine  *compliance.Engine
}

// New creates a new application instance from a validated configuration
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	opts, err := EngineOptions(cfg)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	engine, err := compliance.NewEngine(opts, logger.Named("engine"), collector)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		engine:  engine,
	}, nil
}

// EngineOptions converts the calculation settings into engine options
func EngineOptions(cfg *config.ConfigData) (compliance.Options, error) {
	calc := cfg.Calculation

	minDuration, err := cfg.MinDuration()
	if err != nil {
		return compliance.Options{}, err
	}

	return compliance.Options{
		Insolation: insolation.Config{
			TimeStep:          cfg.TimeStep(),
			ConsiderShadowing: calc.Insolation.ConsiderShadowing,
			ShadowModel:       insolation.ShadowModel(calc.Insolation.ShadowModel),
		},
		KEO: keo.Config{
			GridDensity:       calc.KEO.GridDensity,
			ConsiderReflected: calc.KEO.ConsiderReflected,
			MinKEO:            calc.KEO.MinKEO,
		},
		CalculateInsolation: calc.Insolation.Enabled,
		CalculateKEO:        calc.KEO.Enabled,
		MinDuration:         minDuration,
		Room: building.Dimensions{
			Depth:  calc.KEO.RoomDepth,
			Width:  calc.KEO.RoomWidth,
			Height: calc.KEO.RoomHeight,
		},
		PointOffset: calc.KEO.PointOffset,
		Mode:        compliance.ModeFor(calc.Compliance.Strict),
		Workers:     calc.Workers,
	}, nil
}

// Engine returns the application's compliance engine
func (a *App) Engine() *compliance.Engine {
	return a.engine
}

// Metrics returns the application's metrics collector
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

// Calculate evaluates b for date and, when a storage backend is configured,
// archives the run before returning
func (a *App) Calculate(ctx context.Context, b *building.Building, date time.Time) (*compliance.BuildingResult, error) {
	result, err := a.engine.CalculateBuilding(ctx, b, date)
	if err != nil {
		return nil, err
	}
	if !a.archiveConfigured() {
		return result, nil
	}

	var wg sync.WaitGroup
	storeCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		wg.Wait()
	}()

	sm, err := managers.NewStorageManager(storeCtx, &wg, a.cfg.Storage, a.metrics, a.logger.Named("storage"))
	if err != nil {
		return result, fmt.Errorf("opening result archive: %w", err)
	}
	if err := sm.Submit(storeCtx, result); err != nil {
		sm.Shutdown()
		return result, fmt.Errorf("archiving run: %w", err)
	}
	sm.Shutdown()

	return result, nil
}

func (a *App) archiveConfigured() bool {
	s := a.cfg.Storage
	return (s.SQLite != nil && s.SQLite.Path != "") ||
		(s.TimescaleDB != nil && s.TimescaleDB.ConnectionString != "")
}

// Run starts the REST server and blocks until shutdown. Runs queued for
// storage are written before Run returns.
func (a *App) Run(ctx context.Context) error {
	if !a.cfg.REST.Enabled {
		return ErrNothingToServe
	}

	// Storage outlives the server so in-flight runs still reach the archive
	var storeWG sync.WaitGroup
	storeCtx, storeCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		storeCancel()
		storeWG.Wait()
	}()

	storageManager, err := managers.NewStorageManager(storeCtx, &storeWG, a.cfg.Storage, a.metrics, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer storageManager.Shutdown()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cm, err := managers.NewControllerManager(ctx, &wg, a.cfg, managers.ControllerDeps{
		Engine:  a.engine,
		Store:   storageManager,
		Metrics: a.metrics.Handler(),
	}, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to stop the REST server
	cancel()

	a.logger.Info("waiting for the REST server to terminate...")
	wg.Wait()
	a.logger.Info("flushing queued runs to storage...")
	return nil
}
