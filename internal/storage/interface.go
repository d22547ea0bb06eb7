// Package storage defines the result archive backends and the helpers they
// share.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/chrissnell/daylight/internal/compliance"
)

// ErrNotFound is returned when no run is archived for a building
var ErrNotFound = errors.New("no archived run")

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- *compliance.BuildingResult
}

// RunReader is implemented by backends that can return archived runs
type RunReader interface {
	LatestRun(ctx context.Context, buildingID string) (*compliance.BuildingResult, error)
}

// WriteRecorder receives the outcome of every archive write.
// *metrics.Collector implements it.
type WriteRecorder interface {
	ObserveStorageWrite(engine string, err error)
}
