// Package config loads calculation, storage and server settings from a YAML
// file or a SQLite settings database.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Calculation CalculationData `mapstructure:"calculation" json:"calculation"`
	Storage     StorageData     `mapstructure:"storage" json:"storage,omitempty"`
	REST        RESTServerData  `mapstructure:"rest" json:"rest"`
	Log         LogData         `mapstructure:"log" json:"log"`
}

// CalculationData holds the settings of the calculators and the engine
type CalculationData struct {
	Insolation InsolationData `mapstructure:"insolation" json:"insolation"`
	KEO        KEOData        `mapstructure:"keo" json:"keo"`
	Compliance ComplianceData `mapstructure:"compliance" json:"compliance"`
	Workers    int            `mapstructure:"workers" json:"workers"`
}

type InsolationData struct {
	Enabled           bool    `mapstructure:"enabled" json:"enabled"`
	TimeStep          float64 `mapstructure:"time_step" json:"time_step"` // seconds
	ConsiderShadowing bool    `mapstructure:"consider_shadowing" json:"consider_shadowing"`
	ShadowModel       string  `mapstructure:"shadow_model" json:"shadow_model"`
	// MinDuration is HH:MM:SS; empty means no threshold
	MinDuration string `mapstructure:"min_duration" json:"min_duration"`
}

type KEOData struct {
	Enabled           bool    `mapstructure:"enabled" json:"enabled"`
	GridDensity       float64 `mapstructure:"grid_density" json:"grid_density"`
	ConsiderReflected bool    `mapstructure:"consider_reflected" json:"consider_reflected"`
	MinKEO            float64 `mapstructure:"min_keo" json:"min_keo"`
	RoomDepth         float64 `mapstructure:"room_depth" json:"room_depth"`
	RoomWidth         float64 `mapstructure:"room_width" json:"room_width"`
	RoomHeight        float64 `mapstructure:"room_height" json:"room_height"`
	PointOffset       float64 `mapstructure:"point_offset" json:"point_offset"`
}

type ComplianceData struct {
	Strict bool `mapstructure:"strict" json:"strict"`
}

// StorageData holds the configuration for the result archive backends. A
// nil backend is disabled.
type StorageData struct {
	SQLite      *SQLiteData      `mapstructure:"sqlite" json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `mapstructure:"timescaledb" json:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `mapstructure:"path" json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `mapstructure:"connection_string" json:"connection_string"`
}

type RESTServerData struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr,omitempty"`
	Port       int    `mapstructure:"port" json:"port"`
	Cert       string `mapstructure:"cert" json:"cert,omitempty"`
	Key        string `mapstructure:"key" json:"key,omitempty"`
}

type LogData struct {
	File string `mapstructure:"file" json:"file,omitempty"`
}

// setDefaults registers a default for every calculation and server key
func setDefaults(v *viper.Viper) {
	v.SetDefault("calculation.insolation.enabled", true)
	v.SetDefault("calculation.insolation.time_step", 1.0)
	v.SetDefault("calculation.insolation.consider_shadowing", true)
	v.SetDefault("calculation.insolation.shadow_model", "raycast")
	v.SetDefault("calculation.insolation.min_duration", "01:30:00")

	v.SetDefault("calculation.keo.enabled", true)
	v.SetDefault("calculation.keo.grid_density", 0.5)
	v.SetDefault("calculation.keo.consider_reflected", true)
	v.SetDefault("calculation.keo.min_keo", 0.5)
	v.SetDefault("calculation.keo.room_depth", 5.0)
	v.SetDefault("calculation.keo.room_width", 4.0)
	v.SetDefault("calculation.keo.room_height", 3.0)
	v.SetDefault("calculation.keo.point_offset", 1.0)

	v.SetDefault("calculation.compliance.strict", false)
	v.SetDefault("calculation.workers", runtime.NumCPU())

	v.SetDefault("rest.enabled", false)
	v.SetDefault("rest.port", 8080)
}

// newViper returns a viper instance with defaults and DAYLIGHT_ environment
// overrides (calculation.keo.min_keo -> DAYLIGHT_CALCULATION_KEO_MIN_KEO)
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DAYLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// decode unmarshals v and validates the result
func decode(v *viper.Viper) (*ConfigData, error) {
	var cfg ConfigData
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the configuration used when no file is given
func Defaults() *ConfigData {
	cfg, err := decode(newViper())
	if err != nil {
		// The defaults are constants; failing here is a programming error
		panic(err)
	}
	return cfg
}

// Validate rejects values the calculators cannot work with
func (c *ConfigData) Validate() error {
	ins := c.Calculation.Insolation
	// Checked after conversion: steps below a nanosecond truncate to zero
	if c.TimeStep() <= 0 {
		return fmt.Errorf("calculation.insolation.time_step must be at least 1ns, got %v s", ins.TimeStep)
	}
	switch ins.ShadowModel {
	case "raycast", "none":
	default:
		return fmt.Errorf("calculation.insolation.shadow_model: unknown model %q", ins.ShadowModel)
	}
	if _, err := c.MinDuration(); err != nil {
		return err
	}

	keo := c.Calculation.KEO
	if keo.GridDensity <= 0 {
		return fmt.Errorf("calculation.keo.grid_density must be positive, got %v", keo.GridDensity)
	}
	if keo.MinKEO < 0 {
		return fmt.Errorf("calculation.keo.min_keo must not be negative, got %v", keo.MinKEO)
	}
	if keo.RoomDepth <= 0 || keo.RoomWidth <= 0 || keo.RoomHeight <= 0 {
		return fmt.Errorf("calculation.keo room dimensions must be positive, got %vx%vx%v",
			keo.RoomDepth, keo.RoomWidth, keo.RoomHeight)
	}
	if keo.PointOffset < 0 {
		return fmt.Errorf("calculation.keo.point_offset must not be negative, got %v", keo.PointOffset)
	}

	if c.REST.Enabled && (c.REST.Port <= 0 || c.REST.Port > 65535) {
		return fmt.Errorf("rest.port out of range: %d", c.REST.Port)
	}
	return nil
}

// TimeStep returns the insolation sweep step
func (c *ConfigData) TimeStep() time.Duration {
	return time.Duration(c.Calculation.Insolation.TimeStep * float64(time.Second))
}

// MinDuration parses calculation.insolation.min_duration. An empty value
// means no threshold and yields nil.
func (c *ConfigData) MinDuration() (*time.Duration, error) {
	s := strings.TrimSpace(c.Calculation.Insolation.MinDuration)
	if s == "" {
		return nil, nil
	}
	d, err := ParseClock(s)
	if err != nil {
		return nil, fmt.Errorf("calculation.insolation.min_duration: %w", err)
	}
	return &d, nil
}

// ParseClock parses an HH:MM:SS duration such as "01:30:00"
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%q is not HH:MM:SS", s)
	}

	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q is not HH:MM:SS", s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%q: minutes and seconds must be below 60", s)
	}

	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}
