package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/daylight/internal/compliance"
	"go.uber.org/zap"
)

// ProcessResults provides a standard pattern for processing results from a
// channel. It returns when the channel is closed, after every queued result
// has been processed, or when ctx is done. The caller adds to wg before
// starting it.
func ProcessResults(ctx context.Context, wg *sync.WaitGroup, resultChan <-chan *compliance.BuildingResult,
	processor func(context.Context, *compliance.BuildingResult) error, name string,
	recorder WriteRecorder, logger *zap.SugaredLogger) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-resultChan:
			if !ok {
				logger.Infof("%s result processor drained", name)
				return
			}
			err := processor(ctx, r)
			if err != nil {
				logger.Errorw("could not archive result", "engine", name, "run", r.RunID, "error", err)
			}
			if recorder != nil {
				recorder.ObserveStorageWrite(name, err)
			}
		case <-ctx.Done():
			logger.Infof("cancellation request received. Cancelling %s result processor", name)
			return
		}
	}
}
