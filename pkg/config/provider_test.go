package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daylight.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	ins := cfg.Calculation.Insolation
	if !ins.Enabled || !ins.ConsiderShadowing || ins.ShadowModel != "raycast" {
		t.Errorf("insolation defaults = %+v", ins)
	}
	if cfg.TimeStep() != time.Second {
		t.Errorf("time step = %v, expected 1s", cfg.TimeStep())
	}
	req, err := cfg.MinDuration()
	if err != nil || req == nil || *req != 90*time.Minute {
		t.Errorf("min duration = %v, %v; expected 1h30m", req, err)
	}

	keo := cfg.Calculation.KEO
	if keo.GridDensity != 0.5 || keo.MinKEO != 0.5 || !keo.ConsiderReflected {
		t.Errorf("keo defaults = %+v", keo)
	}
	if keo.RoomDepth != 5 || keo.RoomWidth != 4 || keo.RoomHeight != 3 || keo.PointOffset != 1 {
		t.Errorf("default room = %+v", keo)
	}
	if cfg.Calculation.Compliance.Strict {
		t.Error("compliance should default to lenient")
	}
	if cfg.Calculation.Workers != runtime.NumCPU() {
		t.Errorf("workers = %d, expected %d", cfg.Calculation.Workers, runtime.NumCPU())
	}
	if cfg.Storage.SQLite != nil || cfg.Storage.TimescaleDB != nil {
		t.Error("storage backends must be disabled unless configured")
	}
}

func TestYAMLProvider(t *testing.T) {
	path := writeYAML(t, `
calculation:
  insolation:
    time_step: 60
    min_duration: "02:00:00"
    shadow_model: none
  keo:
    min_keo: 1.0
  compliance:
    strict: true
storage:
  sqlite:
    path: /var/lib/daylight/results.db
rest:
  enabled: true
  port: 9090
`)

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeStep() != time.Minute {
		t.Errorf("time step = %v", cfg.TimeStep())
	}
	if req, _ := cfg.MinDuration(); req == nil || *req != 2*time.Hour {
		t.Errorf("min duration = %v", req)
	}
	if cfg.Calculation.Insolation.ShadowModel != "none" || !cfg.Calculation.Compliance.Strict {
		t.Errorf("calculation = %+v", cfg.Calculation)
	}
	if cfg.Calculation.KEO.MinKEO != 1.0 || cfg.Calculation.KEO.GridDensity != 0.5 {
		t.Errorf("keo = %+v, expected min_keo overridden and grid density defaulted", cfg.Calculation.KEO)
	}
	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/var/lib/daylight/results.db" {
		t.Errorf("sqlite storage = %+v", cfg.Storage.SQLite)
	}
	if !cfg.REST.Enabled || cfg.REST.Port != 9090 {
		t.Errorf("rest = %+v", cfg.REST)
	}
}

func TestYAMLProviderEnvOverride(t *testing.T) {
	t.Setenv("DAYLIGHT_CALCULATION_KEO_MIN_KEO", "0.75")
	path := writeYAML(t, "calculation:\n  keo:\n    min_keo: 1.0\n")

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calculation.KEO.MinKEO != 0.75 {
		t.Errorf("min_keo = %v, expected the environment value 0.75", cfg.Calculation.KEO.MinKEO)
	}
}

func TestEmptyMinDurationDisablesThreshold(t *testing.T) {
	path := writeYAML(t, "calculation:\n  insolation:\n    min_duration: \"\"\n")

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if req, err := cfg.MinDuration(); err != nil || req != nil {
		t.Errorf("min duration = %v, %v; expected no threshold", req, err)
	}
}

func TestYAMLProviderRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad min duration", "calculation:\n  insolation:\n    min_duration: ninety minutes\n"},
		{"zero time step", "calculation:\n  insolation:\n    time_step: 0\n"},
		{"sub-nanosecond time step", "calculation:\n  insolation:\n    time_step: 0.0000000001\n"},
		{"unknown shadow model", "calculation:\n  insolation:\n    shadow_model: voxel\n"},
		{"zero grid density", "calculation:\n  keo:\n    grid_density: 0\n"},
		{"negative min keo", "calculation:\n  keo:\n    min_keo: -1\n"},
		{"flat default room", "calculation:\n  keo:\n    room_height: 0\n"},
		{"port out of range", "rest:\n  enabled: true\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewYAMLProvider(writeYAML(t, tt.body)).LoadConfig(); err == nil {
				t.Error("expected a load error")
			}
		})
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); err == nil {
		t.Error("missing file accepted")
	}
}

func TestValidateTimeStepAfterConversion(t *testing.T) {
	tests := []struct {
		step float64
		ok   bool
	}{
		{1, true},
		{0.001, true},
		{1e-10, false},
		{-1, false},
	}
	for _, tt := range tests {
		cfg := Defaults()
		cfg.Calculation.Insolation.TimeStep = tt.step
		if err := cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("time_step %v: Validate() = %v, expected ok=%v", tt.step, err, tt.ok)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Duration
		ok       bool
	}{
		{"01:30:00", 90 * time.Minute, true},
		{"00:00:01", time.Second, true},
		{"25:00:00", 25 * time.Hour, true},
		{"1:30", 0, false},
		{"01:60:00", 0, false},
		{"01:-1:00", 0, false},
		{"aa:bb:cc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("ParseClock(%q) error = %v", tt.in, err)
			}
			if got != tt.expected {
				t.Errorf("ParseClock(%q) = %v, expected %v", tt.in, got, tt.expected)
			}
		})
	}
}
