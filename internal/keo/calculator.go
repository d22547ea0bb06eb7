// Package keo computes the coefficient of natural illumination (KEO, the
// daylight factor) for side-lit rooms. Each point is the sum of a sky
// component, an external-reflected component and an internal-reflected
// component, scaled by the glazing's transmittance and frame factor.
package keo

import (
	"fmt"
	"math"

	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

const (
	// WorkingHeight is the standard height of the calculation plane (m)
	WorkingHeight = 0.8

	// SkyLuminanceFactor is τ₀ for the CIE overcast sky
	SkyLuminanceFactor = 0.4

	// ExternalReflectedFraction is the empirical share of light reflected
	// off facades and ground
	ExternalReflectedFraction = 0.15

	// InternalReflectedFraction scales the interreflected room light
	InternalReflectedFraction = 0.3

	DefaultExternalReflectance = 0.2
	DefaultInternalReflectance = 0.5
	DefaultMinKEO              = 0.5
	DefaultGridDensity         = 0.5

	// windows closer than this to the point contribute nothing
	minDistance = 0.01
)

// Config is fixed for the life of a Calculator
type Config struct {
	// GridDensity is calculation points per square metre of floor
	GridDensity       float64
	ConsiderReflected bool
	// MinKEO is the pass threshold in percent
	MinKEO float64
}

// DefaultConfig returns the regulatory defaults
func DefaultConfig() Config {
	return Config{
		GridDensity:       DefaultGridDensity,
		ConsiderReflected: true,
		MinKEO:            DefaultMinKEO,
	}
}

// Optics describes the glazing and surface reflectances used for a calculation
type Optics struct {
	Transmittance       float64
	FrameFactor         float64
	ExternalReflectance float64
	InternalReflectance float64
}

// DefaultOptics returns the default glazing with default reflectances
func DefaultOptics() Optics {
	return Optics{
		Transmittance:       building.DefaultTransmittance,
		FrameFactor:         building.DefaultFrameFactor,
		ExternalReflectance: DefaultExternalReflectance,
		InternalReflectance: DefaultInternalReflectance,
	}
}

// OpticsFor takes the glazing values from w and the default reflectances
func OpticsFor(w building.Window) Optics {
	o := DefaultOptics()
	o.Transmittance = w.Transmittance
	o.FrameFactor = w.FrameFactor
	return o
}

// Scale is the factor that turns a raw component into percent
func (o Optics) Scale() float64 {
	return o.Transmittance * o.FrameFactor * 100
}

// Calculator evaluates KEO. It is read-only after construction.
type Calculator struct {
	cfg Config
}

// New creates a Calculator
func New(cfg Config) (*Calculator, error) {
	if cfg.GridDensity <= 0 {
		return nil, fmt.Errorf("keo: grid density must be positive, got %v", cfg.GridDensity)
	}
	if cfg.MinKEO < 0 {
		return nil, fmt.Errorf("keo: minimum KEO must not be negative, got %v", cfg.MinKEO)
	}
	return &Calculator{cfg: cfg}, nil
}

// MinKEO returns the pass threshold in percent
func (c *Calculator) MinKEO() float64 {
	return c.cfg.MinKEO
}

// SideLighting computes KEO at point for a room lit by windows. A room with
// no floor area or no windows yields an all-zero result.
func (c *Calculator) SideLighting(room building.Dimensions, windows []building.Window, point r3.Vec, optics Optics) *Result {
	res := &Result{
		Point:       point,
		MinRequired: c.cfg.MinKEO,
		Details: Details{
			Room:        room,
			WindowCount: len(windows),
			WindowArea:  totalArea(windows),
			Scale:       optics.Scale(),
		},
	}
	if len(windows) == 1 {
		res.WindowID = windows[0].ID
	}

	floorArea := room.FloorArea()
	if room.Depth <= 0 || room.Width <= 0 || floorArea <= 0 {
		res.Details.Note = "room has no floor area"
		return res
	}
	if len(windows) == 0 {
		res.Details.Note = "no windows"
		return res
	}

	raw := Components{
		Sky:               skyComponent(windows, point, floorArea, optics.InternalReflectance),
		InternalReflected: internalComponent(res.Details.WindowArea, room.SurfaceArea(), optics.InternalReflectance),
	}
	if c.cfg.ConsiderReflected {
		raw.ExternalReflected = optics.ExternalReflectance * ExternalReflectedFraction
	}

	scale := optics.Scale()
	res.Details.Raw = raw
	res.Sky = raw.Sky * scale
	res.ExternalReflected = raw.ExternalReflected * scale
	res.InternalReflected = raw.InternalReflected * scale
	res.Total = (raw.Sky + raw.ExternalReflected + raw.InternalReflected) * scale
	res.MeetsRequirement = res.Total >= c.cfg.MinKEO
	return res
}

// skyComponent approximates the visible sky through each window by its solid
// angle A/d² and relates it to the floor area and average reflectance
func skyComponent(windows []building.Window, point r3.Vec, floorArea, reflectance float64) float64 {
	if floorArea <= 0 || reflectance <= 0 {
		return 0
	}
	var solidAngle float64
	for _, w := range windows {
		d := r3.Norm(r3.Sub(w.Center, point))
		if d < minDistance {
			continue
		}
		solidAngle += w.Area() / (d * d)
	}
	return clamp01(SkyLuminanceFactor * solidAngle / (floorArea * reflectance))
}

func internalComponent(windowArea, surfaceArea, reflectance float64) float64 {
	if surfaceArea <= 0 {
		return 0
	}
	return clamp01(reflectance * (windowArea / surfaceArea) * InternalReflectedFraction)
}

// RoomGrid evaluates KEO over an evenly spaced grid at working height and
// checks the minimum against the threshold
func (c *Calculator) RoomGrid(room building.Dimensions, windows []building.Window, optics Optics) *GridResult {
	grid := &GridResult{MinRequired: c.cfg.MinKEO}

	points, nx, ny := gridPoints(room, c.cfg.GridDensity)
	grid.PointsX, grid.PointsY = nx, ny
	if len(points) == 0 {
		return grid
	}

	values := make([]float64, 0, len(points))
	grid.Points = make([]PointValue, 0, len(points))
	for _, p := range points {
		r := c.SideLighting(room, windows, p, optics)
		values = append(values, r.Total)
		grid.Points = append(grid.Points, PointValue{Point: p, KEO: r.Total})
	}

	grid.PointCount = len(values)
	grid.Average = stat.Mean(values, nil)
	grid.Min = floats.Min(values)
	grid.Max = floats.Max(values)
	grid.MeetsRequirement = grid.Min >= c.cfg.MinKEO
	return grid
}

// GridPoints returns the calculation points for room at the given density.
// X runs along the depth and Y along the width, both boundaries included.
func GridPoints(room building.Dimensions, density float64) []r3.Vec {
	points, _, _ := gridPoints(room, density)
	return points
}

func gridPoints(room building.Dimensions, density float64) ([]r3.Vec, int, int) {
	if room.Depth <= 0 || room.Width <= 0 || density <= 0 {
		return nil, 0, 0
	}

	total := float64(int(room.FloorArea() * density))
	aspect := room.Width / room.Depth
	nx := max(2, int(math.Sqrt(total*aspect)))
	ny := max(2, int(math.Sqrt(total/aspect)))

	stepX := room.Depth / float64(nx-1)
	stepY := room.Width / float64(ny-1)

	points := make([]r3.Vec, 0, nx*ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			points = append(points, r3.Vec{
				X: float64(i) * stepX,
				Y: float64(j) * stepY,
				Z: WorkingHeight,
			})
		}
	}
	return points, nx, ny
}

func totalArea(windows []building.Window) float64 {
	var a float64
	for _, w := range windows {
		a += w.Area()
	}
	return a
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Blocked returns an all-zero result for a point that receives no daylight
// through any modelled path
func (c *Calculator) Blocked(room building.Dimensions, point r3.Vec, note string) *Result {
	return &Result{
		Point:       point,
		MinRequired: c.cfg.MinKEO,
		Details: Details{
			Room: room,
			Note: note,
		},
	}
}
