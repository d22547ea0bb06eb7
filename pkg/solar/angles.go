package solar

import "math"

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// fixAngle normalizes an angle to the range [0, 360) degrees
func fixAngle(a float64) float64 { return a - 360.0*math.Floor(a/360.0) }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
