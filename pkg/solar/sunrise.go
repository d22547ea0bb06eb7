package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// StandardAltitude is the apparent altitude of the sun's centre at sunrise
// and sunset: 34' of refraction plus 16' of solar semi-diameter.
const StandardAltitude = -0.8333

// Almanac supplies sunrise and sunset for a local calendar day. Both times
// carry day's location.
type Almanac interface {
	SunriseSunset(day time.Time, latitude, longitude float64) (sunrise, sunset time.Time, err error)
}

// MeeusAlmanac computes rise and set from the low-precision solar coordinates
// in Meeus, "Astronomical Algorithms", ch. 25, evaluated at local noon.
type MeeusAlmanac struct {
	// Altitude overrides StandardAltitude when non-zero (degrees)
	Altitude float64
}

// sunCoordinates holds the declination and equation of time for an instant
type sunCoordinates struct {
	DeclinationDeg float64
	EqOfTimeMin    float64
}

func coordinatesAt(t time.Time) sunCoordinates {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))
	decl := math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	return sunCoordinates{
		DeclinationDeg: radToDeg(decl),
		EqOfTimeMin:    eqTimeMin,
	}
}

// SunriseSunset returns sunrise and sunset for the calendar day of day, in
// day's location.
//
// Polar night yields sunrise == sunset == solar noon. Polar day yields the
// full local day, midnight to midnight.
func (a MeeusAlmanac) SunriseSunset(day time.Time, latitude, longitude float64) (time.Time, time.Time, error) {
	loc := day.Location()
	y, m, d := day.Date()
	localNoon := time.Date(y, m, d, 12, 0, 0, 0, loc)

	h0 := a.Altitude
	if h0 == 0 {
		h0 = StandardAltitude
	}

	sc := coordinatesAt(localNoon)

	// Solar noon in UTC minutes, 4 minutes per degree of longitude (east positive)
	noonMinutes := 720.0 - 4.0*longitude - sc.EqOfTimeMin
	solarNoon := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(minutes(noonMinutes))

	// The UTC calendar day may differ from the local one; pick the transit
	// closest to local noon.
	for solarNoon.Sub(localNoon) > 12*time.Hour {
		solarNoon = solarNoon.Add(-24 * time.Hour)
	}
	for localNoon.Sub(solarNoon) > 12*time.Hour {
		solarNoon = solarNoon.Add(24 * time.Hour)
	}
	solarNoon = solarNoon.In(loc)

	latRad := degToRad(latitude)
	declRad := degToRad(sc.DeclinationDeg)
	cosH := (math.Sin(degToRad(h0)) - math.Sin(latRad)*math.Sin(declRad)) /
		(math.Cos(latRad) * math.Cos(declRad))

	switch {
	case cosH > 1:
		return solarNoon, solarNoon, nil
	case cosH < -1:
		midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return midnight, midnight.AddDate(0, 0, 1), nil
	}

	// 4 minutes of time per degree of hour angle
	halfDay := minutes(radToDeg(math.Acos(cosH)) * 4.0)
	return solarNoon.Add(-halfDay), solarNoon.Add(halfDay), nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// FormatSunTime renders t as a wall-clock time in loc, or "" for the zero time
func FormatSunTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("15:04:05")
}
