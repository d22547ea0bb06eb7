package insolation

import (
	"math"

	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/spatial/r3"
)

// ShadowTester decides whether the sun ray leaving origin along sunDir is
// blocked by any of the obstructions. sunDir is a unit vector.
type ShadowTester interface {
	Shadowed(origin, sunDir r3.Vec, obstructions []building.Obstruction) bool
}

// ShadowModel identifies the shadow test strategy
type ShadowModel string

const (
	// ShadowModelRaycast intersects the sun ray with every obstruction box
	ShadowModelRaycast ShadowModel = "raycast"

	// ShadowModelNone never reports a shadow
	ShadowModelNone ShadowModel = "none"
)

// NoShadow never shadows anything
type NoShadow struct{}

// Shadowed always returns false
func (NoShadow) Shadowed(r3.Vec, r3.Vec, []building.Obstruction) bool {
	return false
}

// RayCaster tests the sun ray against axis-aligned obstruction boxes using
// the slab method
type RayCaster struct{}

// Shadowed reports whether the ray hits any box in front of origin. An
// origin inside a box counts as shadowed.
func (RayCaster) Shadowed(origin, sunDir r3.Vec, obstructions []building.Obstruction) bool {
	for _, ob := range obstructions {
		if rayHitsBox(origin, sunDir, ob.Min, ob.Max) {
			return true
		}
	}
	return false
}

func rayHitsBox(o, d, lo, hi r3.Vec) bool {
	tNear, tFar := math.Inf(-1), math.Inf(1)

	for _, axis := range [3]struct{ o, d, lo, hi float64 }{
		{o.X, d.X, lo.X, hi.X},
		{o.Y, d.Y, lo.Y, hi.Y},
		{o.Z, d.Z, lo.Z, hi.Z},
	} {
		if axis.d == 0 {
			// Parallel to this slab: a miss unless the origin lies within it
			if axis.o < axis.lo || axis.o > axis.hi {
				return false
			}
			continue
		}
		t1 := (axis.lo - axis.o) / axis.d
		t2 := (axis.hi - axis.o) / axis.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tNear = max(tNear, t1)
		tFar = min(tFar, t2)
		if tNear > tFar {
			return false
		}
	}

	return tFar >= 0
}

func newShadowTester(model ShadowModel) (ShadowTester, bool) {
	switch model {
	case ShadowModelRaycast, "":
		return RayCaster{}, true
	case ShadowModelNone:
		return NoShadow{}, true
	default:
		return nil, false
	}
}
