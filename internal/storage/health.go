package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the last known state of a storage backend
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *Health
}

// HealthManager keeps backend health in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]Health),
	}
}

// Update records the health of a backend
func (hm *HealthManager) Update(engine string, h *Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[engine] = *h
}

// Get returns the health of one backend
func (hm *HealthManager) Get(engine string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[engine]
	return h, ok
}

// All returns a copy of every backend's health
func (hm *HealthManager) All() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// IsHealthy reports whether engine was healthy at a check no older than maxAge
func (hm *HealthManager) IsHealthy(engine string, maxAge time.Duration) bool {
	h, ok := hm.Get(engine)
	if !ok || time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == StatusHealthy
}

// StartHealthMonitor checks a backend immediately and then every interval
// until ctx is done
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, hm *HealthManager, engine string,
	checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		update := func() {
			h := checker.CheckHealth(ctx)
			hm.Update(engine, h)
			logger.Debugf("updated %s health status: %s", engine, h.Status)
		}
		update()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", engine)
				return
			}
		}
	}()
}

// CreateHealth creates a health record stamped with the current time
func CreateHealth(status, message string, err error) *Health {
	h := &Health{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
