// Package compliance merges per-window insolation and KEO results into
// verdicts and runs whole-building calculations.
package compliance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/keo"
	"github.com/chrissnell/daylight/internal/loggia"
	"github.com/google/uuid"
)

// Mode selects how absent sub-results are treated
type Mode string

const (
	// ModeLenient evaluates only the sub-results that are present
	ModeLenient Mode = "lenient"

	// ModeStrict requires both insolation and KEO to be present and passing
	ModeStrict Mode = "strict"
)

// ModeFor maps the strict flag from configuration to a Mode
func ModeFor(strict bool) Mode {
	if strict {
		return ModeStrict
	}
	return ModeLenient
}

// Warning texts attached to failing windows
const (
	WarnInsolationNotMet = "Insolation requirement not met"
	WarnKEONotMet        = "KEO requirement not met"
	WarnInsolationAbsent = "Insolation not calculated"
	WarnKEOAbsent        = "KEO not calculated"
)

// WindowResult pairs one window's insolation and KEO results
type WindowResult struct {
	WindowID   string             `json:"window_id" msgpack:"window_id"`
	WindowType string             `json:"window_type,omitempty" msgpack:"window_type,omitempty"`
	Insolation *insolation.Result `json:"insolation_result,omitempty" msgpack:"insolation_result,omitempty"`
	KEO        *keo.Result        `json:"keo_result,omitempty" msgpack:"keo_result,omitempty"`
	Compliant  bool               `json:"is_compliant" msgpack:"is_compliant"`
	Warnings   []string           `json:"warnings" msgpack:"warnings"`
	Errors     []string           `json:"errors" msgpack:"errors"`
	Elapsed    time.Duration      `json:"elapsed_ns" msgpack:"elapsed"`
}

// NewWindowResult returns an empty result for windowID
func NewWindowResult(windowID string) *WindowResult {
	return &WindowResult{
		WindowID: windowID,
		Warnings: []string{},
		Errors:   []string{},
	}
}

// AddError records a calculation failure. A window with errors is never compliant.
func (r *WindowResult) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Evaluate reports whether the window complies under mode without changing r
func (r *WindowResult) Evaluate(mode Mode) bool {
	ok, _ := r.evaluate(mode)
	return ok
}

func (r *WindowResult) evaluate(mode Mode) (bool, []string) {
	var warnings []string
	ok := len(r.Errors) == 0

	if r.Insolation == nil {
		if mode == ModeStrict {
			ok = false
			warnings = append(warnings, WarnInsolationAbsent)
		}
	} else if !r.Insolation.MeetsRequirement {
		ok = false
		warnings = append(warnings, WarnInsolationNotMet)
	}

	if r.KEO == nil {
		if mode == ModeStrict {
			ok = false
			warnings = append(warnings, WarnKEOAbsent)
		}
	} else if !r.KEO.MeetsRequirement {
		ok = false
		warnings = append(warnings, WarnKEONotMet)
	}

	return ok, warnings
}

// Finalize sets Compliant and appends the explanatory warnings. It is
// meant to be called once, after both sub-results are attached.
func (r *WindowResult) Finalize(mode Mode) {
	ok, warnings := r.evaluate(mode)
	r.Compliant = ok
	r.Warnings = append(r.Warnings, warnings...)
}

// RoomResult is the outcome for a room behind a loggia
type RoomResult struct {
	RoomID    string         `json:"room_id" msgpack:"room_id"`
	Result    *loggia.Result `json:"result,omitempty" msgpack:"result,omitempty"`
	Compliant bool           `json:"is_compliant" msgpack:"is_compliant"`
	Errors    []string       `json:"errors" msgpack:"errors"`
}

// Summary is derived from the window list on demand
type Summary struct {
	Total          int     `json:"total_windows" msgpack:"total_windows"`
	Compliant      int     `json:"compliant_windows" msgpack:"compliant_windows"`
	NonCompliant   int     `json:"non_compliant_windows" msgpack:"non_compliant_windows"`
	ComplianceRate float64 `json:"compliance_rate" msgpack:"compliance_rate"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d windows compliant (%.1f%%)", s.Compliant, s.Total, s.ComplianceRate*100)
}

// BuildingResult is one calculation run over a building
type BuildingResult struct {
	RunID           uuid.UUID       `json:"run_id" msgpack:"run_id"`
	BuildingID      string          `json:"building_id" msgpack:"building_id"`
	BuildingName    string          `json:"building_name" msgpack:"building_name"`
	CalculationDate time.Time       `json:"calculation_date" msgpack:"calculation_date"`
	Mode            Mode            `json:"mode" msgpack:"mode"`
	Windows         []*WindowResult `json:"window_results" msgpack:"window_results"`
	LoggiaRooms     []*RoomResult   `json:"loggia_rooms,omitempty" msgpack:"loggia_rooms,omitempty"`
	StartedAt       time.Time       `json:"started_at" msgpack:"started_at"`
	Elapsed         time.Duration   `json:"elapsed_ns" msgpack:"elapsed"`
}

// Summary counts compliant windows. The rate is 0 for a building without windows.
func (b *BuildingResult) Summary() Summary {
	s := Summary{Total: len(b.Windows)}
	for _, w := range b.Windows {
		if w.Compliant {
			s.Compliant++
		}
	}
	s.NonCompliant = s.Total - s.Compliant
	if s.Total > 0 {
		s.ComplianceRate = float64(s.Compliant) / float64(s.Total)
	}
	return s
}

// MarshalJSON adds the derived summary to the encoded result
func (b BuildingResult) MarshalJSON() ([]byte, error) {
	type plain BuildingResult
	return json.Marshal(struct {
		plain
		Summary Summary `json:"summary"`
	}{
		plain:   plain(b),
		Summary: b.Summary(),
	})
}

// Compact returns a copy of b without the per-step illumination instants
// and per-point grid values, which dominate the size of an archived run.
// Intervals and grid statistics are kept. b is not modified.
func (b *BuildingResult) Compact() *BuildingResult {
	c := *b
	c.Windows = make([]*WindowResult, len(b.Windows))
	for i, w := range b.Windows {
		wc := *w
		if w.Insolation != nil {
			ins := *w.Insolation
			ins.Periods = nil
			wc.Insolation = &ins
		}
		c.Windows[i] = &wc
	}
	c.LoggiaRooms = make([]*RoomResult, len(b.LoggiaRooms))
	for i, r := range b.LoggiaRooms {
		rc := *r
		if r.Result != nil {
			lr := *r.Result
			if lr.Insolation != nil {
				ins := *lr.Insolation
				ins.Periods = nil
				lr.Insolation = &ins
			}
			if lr.Grid != nil {
				g := *lr.Grid
				g.Points = nil
				lr.Grid = &g
			}
			rc.Result = &lr
		}
		c.LoggiaRooms[i] = &rc
	}
	return &c
}
