// Package solar computes sun position and day length for a fixed site.
// Azimuth is measured clockwise from north (90° east, 180° south, 270° west);
// elevation is measured from the horizon.
package solar

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is the sun's place in the sky at one instant
type Position struct {
	AzimuthDeg   float64 `json:"azimuth"`
	ElevationDeg float64 `json:"elevation"`
}

// PositionCalculator evaluates the sun position for a site. It is read-only
// after construction and safe for concurrent use.
type PositionCalculator struct {
	latitude  float64
	longitude float64
	loc       *time.Location
	almanac   Almanac
}

// NewPositionCalculator returns a calculator for the given site. Times passed
// to it are converted to loc before the local solar time is derived.
func NewPositionCalculator(latitude, longitude float64, loc *time.Location) (*PositionCalculator, error) {
	if latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("latitude %.4f out of range", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("longitude %.4f out of range", longitude)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PositionCalculator{
		latitude:  latitude,
		longitude: longitude,
		loc:       loc,
		almanac:   MeeusAlmanac{},
	}, nil
}

// WithAlmanac returns a copy of the calculator that uses a different
// sunrise/sunset source
func (p *PositionCalculator) WithAlmanac(a Almanac) *PositionCalculator {
	c := *p
	c.almanac = a
	return &c
}

// Location returns the site's time zone
func (p *PositionCalculator) Location() *time.Location {
	return p.loc
}

// Declination returns the simplified solar declination in degrees for a day of year
func Declination(dayOfYear int) float64 {
	return 23.45 * math.Sin(degToRad(360.0*float64(284+dayOfYear)/365.0))
}

// Position returns the sun's azimuth and elevation at t. Sub-second precision
// is kept: insolation compliance compares durations to the second.
func (p *PositionCalculator) Position(t time.Time) Position {
	local := t.In(p.loc)

	declRad := degToRad(Declination(local.YearDay()))

	hour := float64(local.Hour()) +
		float64(local.Minute())/60.0 +
		float64(local.Second())/3600.0 +
		float64(local.Nanosecond())/3.6e12
	_, offsetSecs := local.Zone()
	solarTime := hour + p.longitude/15.0 - float64(offsetSecs)/3600.0
	hourAngle := 15.0 * (solarTime - 12.0)

	latRad := degToRad(p.latitude)
	sinEl := math.Sin(latRad)*math.Sin(declRad) +
		math.Cos(latRad)*math.Cos(declRad)*math.Cos(degToRad(hourAngle))
	elRad := math.Asin(clamp(sinEl, -1, 1))

	var azDeg float64
	den := math.Cos(latRad) * math.Cos(elRad)
	if den == 0 {
		// Sun at the zenith or observer at a pole: azimuth is undefined
		azDeg = 180.0
	} else {
		cosAz := clamp((math.Sin(declRad)-math.Sin(latRad)*sinEl)/den, -1, 1)
		azDeg = radToDeg(math.Acos(cosAz))
	}
	if hourAngle > 0 {
		azDeg = 360.0 - azDeg
	}

	return Position{
		AzimuthDeg:   azDeg,
		ElevationDeg: radToDeg(elRad),
	}
}

// IsAboveHorizon reports whether the sun's elevation is positive at t
func (p *PositionCalculator) IsAboveHorizon(t time.Time) bool {
	return p.Position(t).ElevationDeg > 0
}

// SunriseSunset returns the almanac's sunrise and sunset for date's calendar
// day, read in date's own location and evaluated at the site
func (p *PositionCalculator) SunriseSunset(date time.Time) (time.Time, time.Time, error) {
	return p.almanac.SunriseSunset(p.LocalDay(date), p.latitude, p.longitude)
}

// boundsStep is how far SweepBounds moves an endpoint at a time
const boundsStep = time.Minute

// SweepBounds returns an interval of date's calendar day that holds every
// instant at which Position puts the sun above the horizon. It starts from
// the almanac's sunrise and sunset and moves each endpoint outward until the
// sun is down there, never past local midnight. The almanac includes the
// equation of time and Position does not, so the two can disagree by
// several minutes.
func (p *PositionCalculator) SweepBounds(date time.Time) (time.Time, time.Time, error) {
	start, end, err := p.SunriseSunset(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	y, m, d := p.LocalDay(date).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, p.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	for start.After(dayStart) && p.IsAboveHorizon(start) {
		start = start.Add(-boundsStep)
		if start.Before(dayStart) {
			start = dayStart
		}
	}
	for end.Before(dayEnd) && p.IsAboveHorizon(end) {
		end = end.Add(boundsStep)
		if end.After(dayEnd) {
			end = dayEnd
		}
	}
	return start, end, nil
}

// LocalDay returns local noon at the site on date's calendar day
func (p *PositionCalculator) LocalDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, p.loc)
}

// DaylightHours returns the time between sunrise and sunset in hours
func (p *PositionCalculator) DaylightHours(date time.Time) (float64, error) {
	rise, set, err := p.SunriseSunset(date)
	if err != nil {
		return 0, err
	}
	return set.Sub(rise).Hours(), nil
}

// Direction converts an azimuth/elevation pair into a unit vector in the
// east-north-up frame
func Direction(pos Position) r3.Vec {
	az := degToRad(pos.AzimuthDeg)
	el := degToRad(pos.ElevationDeg)
	return r3.Vec{
		X: math.Sin(az) * math.Cos(el),
		Y: math.Cos(az) * math.Cos(el),
		Z: math.Sin(el),
	}
}
