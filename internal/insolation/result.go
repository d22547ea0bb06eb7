package insolation

import (
	"fmt"
	"time"
)

// Result is the insolation outcome for one window on one day
type Result struct {
	WindowID         string         `json:"window_id" msgpack:"window_id"`
	CalculationDate  time.Time      `json:"calculation_date" msgpack:"calculation_date"`
	Duration         time.Duration  `json:"-" msgpack:"duration"`
	DurationSeconds  int64          `json:"duration_seconds" msgpack:"duration_seconds"`
	Formatted        string         `json:"duration_formatted" msgpack:"duration_formatted"`
	MeetsRequirement bool           `json:"meets_requirement" msgpack:"meets_requirement"`
	Required         *time.Duration `json:"required_duration_ns,omitempty" msgpack:"required,omitempty"`
	Periods          []time.Time    `json:"periods,omitempty" msgpack:"periods,omitempty"`
	Intervals        []Interval     `json:"intervals" msgpack:"intervals"`
	Details          Details        `json:"details" msgpack:"details"`
}

// Interval is a run of consecutive illuminated sweep steps, [Start, End)
type Interval struct {
	Start time.Time `json:"start" msgpack:"start"`
	End   time.Time `json:"end" msgpack:"end"`
}

// Details carries the sweep parameters for audit output
type Details struct {
	Sunrise       time.Time     `json:"sunrise" msgpack:"sunrise"`
	Sunset        time.Time     `json:"sunset" msgpack:"sunset"`
	DaylightHours float64       `json:"daylight_hours" msgpack:"daylight_hours"`
	TimeStep      time.Duration `json:"time_step_ns" msgpack:"time_step"`
	Shadowing     bool          `json:"shadowing" msgpack:"shadowing"`
	Obstructions  int           `json:"obstructions" msgpack:"obstructions"`
	Note          string        `json:"note,omitempty" msgpack:"note,omitempty"`
}

// RequiredSeconds returns the threshold in whole seconds, or -1 when none was given
func (r *Result) RequiredSeconds() int64 {
	if r.Required == nil {
		return -1
	}
	return int64(*r.Required / time.Second)
}

// RoomResult is the insolation outcome for a set of windows serving one room.
// Best is the window with the longest duration; it governs the room.
type RoomResult struct {
	Best    *Result   `json:"best" msgpack:"best"`
	Windows []*Result `json:"windows" msgpack:"windows"`
}

// FormatDuration renders d as HH:MM:SS, truncating fractional seconds.
// Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

func buildIntervals(instants []time.Time, step time.Duration) []Interval {
	intervals := []Interval{}
	for _, t := range instants {
		n := len(intervals)
		if n > 0 && intervals[n-1].End.Equal(t) {
			intervals[n-1].End = t.Add(step)
			continue
		}
		intervals = append(intervals, Interval{Start: t, End: t.Add(step)})
	}
	return intervals
}
