package managers

import (
	"context"
	"sync"
	"testing"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/pkg/config"
	"go.uber.org/zap"
)

func TestNewControllerManager(t *testing.T) {
	engine, err := compliance.NewEngine(compliance.DefaultOptions(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	deps := ControllerDeps{Engine: engine}
	logger := zap.NewNop().Sugar()

	tests := []struct {
		name    string
		enabled bool
		want    int
	}{
		{"rest disabled", false, 0},
		{"rest enabled", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.REST.Enabled = tt.enabled
			cm, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, cfg, deps, logger)
			if err != nil {
				t.Fatal(err)
			}
			if cm.Count() != tt.want {
				t.Errorf("controllers = %d, expected %d", cm.Count(), tt.want)
			}
		})
	}

	cfg := config.Defaults()
	cfg.REST.Enabled = true
	if _, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, cfg, ControllerDeps{}, logger); err == nil {
		t.Error("REST controller without engine accepted")
	}
}
