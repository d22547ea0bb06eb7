// Package loggia evaluates rooms that sit behind a loggia. Light reaches such
// a room through the loggia opening, which is modelled as a virtual window.
package loggia

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/keo"
	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// TransmissionFactor is the share of light the loggia lets through to
	// the room
	TransmissionFactor = 0.75

	// OpeningTransmittance applies to the unglazed loggia opening
	OpeningTransmittance = 1.0

	// OpeningFrameFactor accounts for the loggia's slabs and parapet
	OpeningFrameFactor = 0.9

	// DefaultOpeningWidth is used when the loggia depth is unknown (m)
	DefaultOpeningWidth = 1.5

	// OpeningHeightShare is the opening height as a share of the room height
	OpeningHeightShare = 0.8

	// OpeningWindowType tags virtual windows
	OpeningWindowType = "loggia_opening"

	noExternalWindowNote = "loggia has no external window; only unmodelled internal reflection reaches the room"
)

// ErrNoLoggia is returned for a room without a loggia
var ErrNoLoggia = errors.New("room has no loggia")

// Result is the outcome for one room behind a loggia
type Result struct {
	RoomID       string             `json:"room_id" msgpack:"room_id"`
	LoggiaID     string             `json:"loggia_id" msgpack:"loggia_id"`
	Opening      *building.Window   `json:"opening,omitempty" msgpack:"-"`
	Insolation   *insolation.Result `json:"insolation" msgpack:"insolation"`
	KEO          *keo.Result        `json:"keo" msgpack:"keo"`
	Grid         *keo.GridResult    `json:"grid,omitempty" msgpack:"grid,omitempty"`
	LoggiaFactor float64            `json:"loggia_factor" msgpack:"loggia_factor"`
	Note         string             `json:"note,omitempty" msgpack:"note,omitempty"`
}

// IsCompliant reports whether both insolation and KEO pass
func (r *Result) IsCompliant() bool {
	return r.Insolation != nil && r.Insolation.MeetsRequirement &&
		r.KEO != nil && r.KEO.MeetsRequirement
}

// Handler composes the insolation and KEO calculators for loggia rooms. It
// holds no state of its own.
type Handler struct {
	insolation *insolation.Calculator
	keo        *keo.Calculator
}

// NewHandler creates a Handler
func NewHandler(ins *insolation.Calculator, k *keo.Calculator) *Handler {
	return &Handler{insolation: ins, keo: k}
}

// CalculateRoom evaluates room, which must have a loggia. A loggia without an
// external window gives zero insolation and zero KEO. KEO is reported at the
// room centre, which decides compliance, and over the room grid.
func (h *Handler) CalculateRoom(ctx context.Context, room building.Room, date time.Time, required *time.Duration) (*Result, error) {
	if !room.HasLoggia() {
		return nil, fmt.Errorf("room %s: %w", room.ID, ErrNoLoggia)
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}

	d := room.Dimensions
	center := r3.Vec{X: d.Depth / 2, Y: d.Width / 2, Z: keo.WorkingHeight}
	res := &Result{
		RoomID:   room.ID,
		LoggiaID: room.Loggia.ID,
	}

	if !room.Loggia.HasExternalWindow {
		res.Note = noExternalWindowNote
		res.Insolation = h.insolation.Blocked(openingID(room.Loggia), date, required, noExternalWindowNote)
		res.KEO = h.keo.Blocked(d, center, noExternalWindowNote)
		return res, nil
	}

	opening := Opening(room)
	res.Opening = &opening
	res.LoggiaFactor = TransmissionFactor

	ins, err := h.insolation.CalculateRoom(ctx, []building.Window{opening}, date, required)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", room.ID, err)
	}
	res.Insolation = ins.Best

	optics := keo.OpticsFor(opening)
	optics.Transmittance *= TransmissionFactor
	res.KEO = h.keo.SideLighting(d, []building.Window{opening}, center, optics)
	res.Grid = h.keo.RoomGrid(d, []building.Window{opening}, optics)

	return res, nil
}

// Opening synthesizes the virtual window at the boundary between room and
// loggia: at the room's far depth, mid-width and mid-height, as wide as the
// loggia is deep and 80% of the room height.
func Opening(room building.Room) building.Window {
	d := room.Dimensions
	width := DefaultOpeningWidth
	normal := r3.Vec{X: -1}
	if room.Loggia != nil {
		if room.Loggia.Depth > 0 {
			width = room.Loggia.Depth
		}
		if r3.Norm(room.Loggia.Facing) > 0 {
			normal = room.Loggia.Facing
		}
	}

	w := building.NewWindow(
		openingID(room.Loggia),
		r3.Vec{X: d.Depth, Y: d.Width / 2, Z: d.Height / 2},
		normal,
		building.Size{Width: width, Height: d.Height * OpeningHeightShare},
	)
	w.WindowType = OpeningWindowType
	w.GlassThickness = 0
	w.Transmittance = OpeningTransmittance
	w.FrameFactor = OpeningFrameFactor
	return w
}

func openingID(l *building.Loggia) string {
	if l == nil {
		return "loggia"
	}
	return "loggia_" + l.ID
}
