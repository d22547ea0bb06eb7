// Package managers wires the configured storage backends together
package managers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/storage"
	"github.com/chrissnell/daylight/internal/storage/sqlite"
	"github.com/chrissnell/daylight/internal/storage/timescaledb"
	"github.com/chrissnell/daylight/pkg/config"
	"go.uber.org/zap"
)

// ErrNoReader is returned by LatestRun when no backend can read runs back
var ErrNoReader = errors.New("no storage backend supports reading runs")

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("storage manager closed")

const healthInterval = time.Minute

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	ResultDistributor chan *compliance.BuildingResult
	Health            *storage.HealthManager

	logger   *zap.SugaredLogger
	recorder storage.WriteRecorder

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	engines sync.WaitGroup
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing results to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- *compliance.BuildingResult
}

// NewStorageManager creates a StorageManager populated with every configured
// backend. With no backend configured, submitted results are discarded.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData,
	recorder storage.WriteRecorder, logger *zap.SugaredLogger) (*StorageManager, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &StorageManager{
		ResultDistributor: make(chan *compliance.BuildingResult, 20),
		Health:            storage.NewHealthManager(),
		logger:            logger,
		recorder:          recorder,
		done:              make(chan struct{}),
	}

	if c.SQLite != nil && c.SQLite.Path != "" {
		if err := s.AddEngine(ctx, wg, sqlite.EngineName, c); err != nil {
			s.closeEngines()
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		if err := s.AddEngine(ctx, wg, timescaledb.EngineName, c); err != nil {
			s.closeEngines()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}

	wg.Add(1)
	go s.startResultDistributor(ctx, wg)

	return s, nil
}

// AddEngine adds a new StorageEngine of name engineName. Its health monitor
// is tracked by wg.
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c config.StorageData) error {
	var engine interface {
		storage.StorageEngineInterface
		storage.HealthChecker
	}

	switch engineName {
	case sqlite.EngineName:
		e, err := sqlite.New(ctx, c.SQLite.Path, s.recorder, s.logger)
		if err != nil {
			return err
		}
		engine = e
	case timescaledb.EngineName:
		e, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, s.recorder, s.logger)
		if err != nil {
			return err
		}
		engine = e
	default:
		return fmt.Errorf("unknown storage engine %q", engineName)
	}

	s.attach(ctx, wg, engineName, engine)
	return nil
}

// attach starts engine and its health monitor
func (s *StorageManager) attach(ctx context.Context, wg *sync.WaitGroup, name string, engine interface {
	storage.StorageEngineInterface
	storage.HealthChecker
}) {
	se := StorageEngine{Name: name, Engine: engine}
	se.C = engine.StartStorageEngine(ctx, &s.engines)
	s.Engines = append(s.Engines, se)
	storage.StartHealthMonitor(ctx, wg, s.Health, name, engine, healthInterval, s.logger)
}

// Submit queues r for every backend. It blocks while the queue is full.
func (s *StorageManager) Submit(ctx context.Context, r *compliance.BuildingResult) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.ResultDistributor <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LatestRun asks the first backend that can read runs back
func (s *StorageManager) LatestRun(ctx context.Context, buildingID string) (*compliance.BuildingResult, error) {
	for _, e := range s.Engines {
		if reader, ok := e.Engine.(storage.RunReader); ok {
			return reader.LatestRun(ctx, buildingID)
		}
	}
	return nil, ErrNoReader
}

// Close stops accepting results and returns once every queued result has
// been written by every backend, or the context given to NewStorageManager
// is done
func (s *StorageManager) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ResultDistributor)
	s.mu.Unlock()

	<-s.done
	s.engines.Wait()
}

// Shutdown drains the queue with Close and closes the backend connections
func (s *StorageManager) Shutdown() {
	s.Close()
	s.closeEngines()
}

func (s *StorageManager) closeEngines() {
	for _, e := range s.Engines {
		if c, ok := e.Engine.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Warnw("could not close storage backend", "engine", e.Name, "error", err)
			}
		}
	}
}

// startResultDistributor fans results out to the storage backends. When the
// distributor channel is closed it closes every engine channel so the
// engines drain and exit.
func (s *StorageManager) startResultDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(s.done)

	closeEngines := func() {
		for _, e := range s.Engines {
			close(e.C)
		}
	}

	for {
		select {
		case r, ok := <-s.ResultDistributor:
			if !ok {
				closeEngines()
				return
			}
			// With no backends configured the result is discarded
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// HealthStatus returns the last health check of every backend
func (s *StorageManager) HealthStatus() map[string]storage.Health {
	return s.Health.All()
}
