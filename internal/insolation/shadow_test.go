package insolation

import (
	"context"
	"testing"
	"time"

	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRayCaster(t *testing.T) {
	box := building.Obstruction{ID: "block", Min: r3.Vec{X: -5, Y: -20, Z: 0}, Max: r3.Vec{X: 5, Y: -10, Z: 30}}

	tests := []struct {
		name     string
		origin   r3.Vec
		dir      r3.Vec
		expected bool
	}{
		{"box straight ahead", r3.Vec{Z: 1}, r3.Vec{Y: -1}, true},
		{"box behind", r3.Vec{Z: 1}, r3.Vec{Y: 1}, false},
		{"ray passes above", r3.Vec{Z: 1}, r3.Unit(r3.Vec{Y: -1, Z: 5}), false},
		{"ray clips top edge region", r3.Vec{Z: 1}, r3.Unit(r3.Vec{Y: -1, Z: 1}), true},
		{"parallel outside slab", r3.Vec{X: 10, Z: 1}, r3.Vec{Y: -1}, false},
		{"origin inside box", r3.Vec{Y: -15, Z: 5}, r3.Vec{Z: 1}, true},
		{"ray passes beside", r3.Vec{Z: 1}, r3.Unit(r3.Vec{X: 1, Y: -1}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RayCaster{}.Shadowed(tt.origin, tt.dir, []building.Obstruction{box})
			if got != tt.expected {
				t.Errorf("Shadowed() = %v, expected %v", got, tt.expected)
			}
		})
	}

	if (RayCaster{}).Shadowed(r3.Vec{}, r3.Vec{Y: -1}, nil) {
		t.Error("no obstructions should never shadow")
	}
	if (NoShadow{}).Shadowed(r3.Vec{Z: 1}, r3.Vec{Y: -1}, []building.Obstruction{box}) {
		t.Error("NoShadow reported a shadow")
	}
}

func TestShadowingReducesInsolation(t *testing.T) {
	ctx := context.Background()
	w := southWindow()

	// A wall spanning the whole southern view
	wall := building.Obstruction{
		ID:  "wall",
		Min: r3.Vec{X: -1e6, Y: -1e6, Z: -1},
		Max: r3.Vec{X: 1e6, Y: -5, Z: 1e6},
	}
	// A block south-east of the window only hides the morning sun
	block := building.Obstruction{
		ID:  "block",
		Min: r3.Vec{X: 2, Y: -1000, Z: 0},
		Max: r3.Vec{X: 1000, Y: -2, Z: 1000},
	}

	clear, err := newCalculator(t, time.Minute).CalculateDuration(ctx, w, summerSolstice, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(t *testing.T, res *Result)
	}{
		{
			name: "wall blocks everything",
			mutate: func(c *Config) {
				c.ConsiderShadowing = true
				c.Obstructions = []building.Obstruction{wall}
			},
			check: func(t *testing.T, res *Result) {
				if res.Duration > time.Minute {
					t.Errorf("wall left %s of sun", res.Formatted)
				}
				if !res.Details.Shadowing || res.Details.Obstructions != 1 {
					t.Errorf("details not populated: %+v", res.Details)
				}
			},
		},
		{
			name: "block hides the morning",
			mutate: func(c *Config) {
				c.ConsiderShadowing = true
				c.Obstructions = []building.Obstruction{block}
			},
			check: func(t *testing.T, res *Result) {
				if res.Duration == 0 || res.Duration >= clear.Duration {
					t.Errorf("partial block gave %s, clear sky %s", res.Formatted, clear.Formatted)
				}
				// Rays grazing the block's faces can still slip past for a step or two
				morning := 0
				for _, p := range res.Periods {
					if p.Hour() < 12 {
						morning++
					}
				}
				if morning > 5 {
					t.Errorf("%d lit minutes before noon behind the block", morning)
				}
			},
		},
		{
			name: "shadowing disabled",
			mutate: func(c *Config) {
				c.ConsiderShadowing = false
				c.Obstructions = []building.Obstruction{wall}
			},
			check: func(t *testing.T, res *Result) {
				if res.Duration != clear.Duration || res.Details.Shadowing {
					t.Errorf("disabled shadowing changed the result: %s vs %s", res.Formatted, clear.Formatted)
				}
			},
		},
		{
			name: "none model",
			mutate: func(c *Config) {
				c.ConsiderShadowing = true
				c.ShadowModel = ShadowModelNone
				c.Obstructions = []building.Obstruction{wall}
			},
			check: func(t *testing.T, res *Result) {
				if res.Duration != clear.Duration {
					t.Errorf("none model changed the result: %s vs %s", res.Formatted, clear.Formatted)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newCalculator(t, time.Minute, tt.mutate).CalculateDuration(ctx, w, summerSolstice, nil)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, res)
		})
	}
}

func TestWithShadowTester(t *testing.T) {
	calc := newCalculator(t, time.Minute, func(c *Config) {
		c.ConsiderShadowing = true
		c.Obstructions = []building.Obstruction{{ID: "x", Max: r3.Vec{X: 1, Y: 1, Z: 1}}}
	})

	blocked := calc.WithShadowTester(alwaysShadow{})
	res, err := blocked.CalculateDuration(context.Background(), southWindow(), summerSolstice, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duration != 0 {
		t.Errorf("custom tester ignored: %s", res.Formatted)
	}

	res, err = calc.CalculateDuration(context.Background(), southWindow(), summerSolstice, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duration == 0 {
		t.Error("WithShadowTester modified the original calculator")
	}
}

type alwaysShadow struct{}

func (alwaysShadow) Shadowed(r3.Vec, r3.Vec, []building.Obstruction) bool { return true }
