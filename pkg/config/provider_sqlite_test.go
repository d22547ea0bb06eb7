package config

import (
	"path/filepath"
	"testing"
	"time"
)

func newSQLiteProvider(t *testing.T) *SQLiteProvider {
	t.Helper()
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSQLiteProviderDefaults(t *testing.T) {
	p := newSQLiteProvider(t)
	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calculation.KEO.MinKEO != 0.5 || cfg.TimeStep() != time.Second {
		t.Errorf("empty settings table should yield defaults, got %+v", cfg.Calculation)
	}
}

func TestSQLiteProviderSettings(t *testing.T) {
	p := newSQLiteProvider(t)

	for k, v := range map[string]string{
		"calculation.insolation.time_step":      "30",
		"calculation.keo.consider_reflected":    "false",
		"calculation.workers":                   "3",
		"Calculation.Compliance.Strict":         "true",
		"storage.timescaledb.connection_string": "postgres://localhost/daylight",
	} {
		if err := p.SetSetting(k, v); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeStep() != 30*time.Second {
		t.Errorf("time step = %v", cfg.TimeStep())
	}
	if cfg.Calculation.KEO.ConsiderReflected {
		t.Error("consider_reflected should be false")
	}
	if cfg.Calculation.Workers != 3 || !cfg.Calculation.Compliance.Strict {
		t.Errorf("calculation = %+v", cfg.Calculation)
	}
	if cfg.Storage.TimescaleDB == nil || cfg.Storage.TimescaleDB.ConnectionString != "postgres://localhost/daylight" {
		t.Errorf("timescaledb = %+v", cfg.Storage.TimescaleDB)
	}

	if err := p.DeleteSetting("calculation.workers"); err != nil {
		t.Fatal(err)
	}
	settings, _ := p.Settings()
	if _, ok := settings["calculation.workers"]; ok {
		t.Error("deleted setting still present")
	}
}

func TestSQLiteProviderRejectsBadValue(t *testing.T) {
	p := newSQLiteProvider(t)
	if err := p.SetSetting("calculation.insolation.min_duration", "soon"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadConfig(); err == nil {
		t.Error("unparsable min_duration accepted")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	p := newSQLiteProvider(t)

	cfg := Defaults()
	cfg.Calculation.Insolation.MinDuration = "02:30:00"
	cfg.Calculation.KEO.GridDensity = 1.25
	cfg.Storage.SQLite = &SQLiteData{Path: "results.db"}
	if err := p.SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if req, _ := got.MinDuration(); req == nil || *req != 150*time.Minute {
		t.Errorf("min duration = %v", req)
	}
	if got.Calculation.KEO.GridDensity != 1.25 {
		t.Errorf("grid density = %v", got.Calculation.KEO.GridDensity)
	}
	if got.Storage.SQLite == nil || got.Storage.SQLite.Path != "results.db" {
		t.Errorf("sqlite storage = %+v", got.Storage.SQLite)
	}
	if got.Storage.TimescaleDB != nil {
		t.Error("unset backend must stay disabled")
	}
}

func TestNest(t *testing.T) {
	if _, err := nest(map[string]string{"a.b": "1", "a.b.c": "2"}); err == nil {
		t.Error("a key that is both a leaf and a branch should be rejected")
	}

	tree, err := nest(map[string]string{"a.b": "1", "a.c": "2", "d": "3"})
	if err != nil {
		t.Fatal(err)
	}
	a, ok := tree["a"].(map[string]any)
	if !ok || a["b"] != "1" || a["c"] != "2" || tree["d"] != "3" {
		t.Errorf("nest = %v", tree)
	}
}
