// Package insolation sweeps a day in fixed time steps and accumulates the
// time a window receives direct sun.
package insolation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/daylight/pkg/building"
	"github.com/chrissnell/daylight/pkg/solar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultTimeStep is the sweep resolution
	DefaultTimeStep = time.Second

	// DefaultMinDuration is the statutory minimum daily insolation
	DefaultMinDuration = 90 * time.Minute

	// shadowOriginOffset lifts the ray origin off the glazing plane so the
	// window's own wall does not occlude it
	shadowOriginOffset = 0.01
)

// Config is fixed for the life of a Calculator
type Config struct {
	TimeStep          time.Duration
	ConsiderShadowing bool
	ShadowModel       ShadowModel
	Obstructions      []building.Obstruction
}

// DefaultConfig returns a one-second sweep with ray-cast shadowing
func DefaultConfig() Config {
	return Config{
		TimeStep:          DefaultTimeStep,
		ConsiderShadowing: true,
		ShadowModel:       ShadowModelRaycast,
	}
}

// Calculator runs insolation sweeps for one site. It holds no per-call
// state and is safe for concurrent use.
type Calculator struct {
	sun          *solar.PositionCalculator
	timeStep     time.Duration
	shadowing    bool
	shadow       ShadowTester
	obstructions []building.Obstruction
}

// New creates a Calculator. The obstruction list is copied.
func New(sun *solar.PositionCalculator, cfg Config) (*Calculator, error) {
	if sun == nil {
		return nil, errors.New("insolation: nil sun position calculator")
	}
	if cfg.TimeStep <= 0 {
		return nil, fmt.Errorf("insolation: time step must be positive, got %v", cfg.TimeStep)
	}
	tester, ok := newShadowTester(cfg.ShadowModel)
	if !ok {
		return nil, fmt.Errorf("insolation: unknown shadow model %q", cfg.ShadowModel)
	}

	return &Calculator{
		sun:          sun,
		timeStep:     cfg.TimeStep,
		shadowing:    cfg.ConsiderShadowing,
		shadow:       tester,
		obstructions: append([]building.Obstruction(nil), cfg.Obstructions...),
	}, nil
}

// WithShadowTester returns a copy of the calculator that uses st for
// occlusion tests
func (c *Calculator) WithShadowTester(st ShadowTester) *Calculator {
	cc := *c
	cc.shadow = st
	return &cc
}

// TimeStep returns the sweep resolution
func (c *Calculator) TimeStep() time.Duration {
	return c.timeStep
}

// IsIlluminated reports whether a surface with the given normal faces the sun
// direction. Both vectors are normalized first; a zero vector is never lit.
func IsIlluminated(normal, sunDir r3.Vec) bool {
	if r3.Norm(normal) == 0 || r3.Norm(sunDir) == 0 {
		return false
	}
	return r3.Dot(r3.Unit(normal), r3.Unit(sunDir)) > 0
}

func (c *Calculator) shadowActive() bool {
	return c.shadowing && c.shadow != nil && len(c.obstructions) > 0
}

// CalculateDuration sweeps date's calendar day for w. required may be nil,
// in which case the result always meets the requirement.
//
// The sweep covers solar.SweepBounds, which contains the almanac's sunrise
// to sunset interval. Steps with the sun at or below the horizon are
// skipped. A step counts when the window faces the
// sun and, if shadowing is active, nothing blocks the ray.
func (c *Calculator) CalculateDuration(ctx context.Context, w building.Window, date time.Time, required *time.Duration) (*Result, error) {
	normal, err := w.UnitNormal()
	if err != nil {
		return nil, err
	}

	sunrise, sunset, err := c.sun.SunriseSunset(date)
	if err != nil {
		return nil, fmt.Errorf("window %s: sunrise/sunset: %w", w.ID, err)
	}

	start, end, err := c.sun.SweepBounds(date)
	if err != nil {
		return nil, fmt.Errorf("window %s: sweep bounds: %w", w.ID, err)
	}

	shadowing := c.shadowActive()
	origin := r3.Add(w.Center, r3.Scale(shadowOriginOffset, normal))

	var (
		accumulated time.Duration
		periods     []time.Time
	)
	for t := start; t.Before(end); t = t.Add(c.timeStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pos := c.sun.Position(t)
		if pos.ElevationDeg <= 0 {
			continue
		}
		sunDir := solar.Direction(pos)
		if !IsIlluminated(normal, sunDir) {
			continue
		}
		if shadowing && c.shadow.Shadowed(origin, sunDir, c.obstructions) {
			continue
		}

		periods = append(periods, t)
		accumulated += c.timeStep
	}

	res := &Result{
		WindowID:         w.ID,
		CalculationDate:  c.sun.LocalDay(date),
		Duration:         accumulated.Truncate(time.Second),
		DurationSeconds:  int64(accumulated / time.Second),
		MeetsRequirement: meetsRequirement(accumulated, required),
		Periods:          periods,
		Intervals:        buildIntervals(periods, c.timeStep),
		Details: Details{
			Sunrise:       sunrise,
			Sunset:        sunset,
			DaylightHours: sunset.Sub(sunrise).Hours(),
			TimeStep:      c.timeStep,
			Shadowing:     shadowing,
			Obstructions:  len(c.obstructions),
		},
	}
	res.Formatted = FormatDuration(res.Duration)
	if required != nil {
		r := *required
		res.Required = &r
	}
	return res, nil
}

// meetsRequirement compares the exact accumulated time against the
// threshold. No tolerance is applied.
func meetsRequirement(accumulated time.Duration, required *time.Duration) bool {
	if required == nil {
		return true
	}
	return accumulated >= *required
}

// CalculateRoom sweeps every window and returns the one with the longest
// duration as the governing result. Ties go to the earliest window.
func (c *Calculator) CalculateRoom(ctx context.Context, windows []building.Window, date time.Time, required *time.Duration) (*RoomResult, error) {
	if len(windows) == 0 {
		return nil, building.ErrNoWindows
	}

	room := &RoomResult{Windows: make([]*Result, 0, len(windows))}
	for _, w := range windows {
		res, err := c.CalculateDuration(ctx, w, date, required)
		if err != nil {
			return nil, fmt.Errorf("room insolation: %w", err)
		}
		room.Windows = append(room.Windows, res)
		if room.Best == nil || res.Duration > room.Best.Duration {
			room.Best = res
		}
	}
	return room, nil
}

// Blocked returns a zero-duration result for an opening that direct sun can
// never reach. It never meets a requirement.
func (c *Calculator) Blocked(windowID string, date time.Time, required *time.Duration, note string) *Result {
	res := &Result{
		WindowID:        windowID,
		CalculationDate: c.sun.LocalDay(date),
		Formatted:       FormatDuration(0),
		Periods:         []time.Time{},
		Intervals:       []Interval{},
		Details: Details{
			TimeStep: c.timeStep,
			Note:     note,
		},
	}
	if required != nil {
		r := *required
		res.Required = &r
	}
	return res
}
