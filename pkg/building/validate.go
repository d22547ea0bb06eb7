package building

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrZeroNormal      = errors.New("normal vector has zero length")
	ErrNonPositiveSize = errors.New("size must be positive")
	ErrOutOfRange      = errors.New("value out of range")
	ErrNoWindows       = errors.New("no windows")
)

// ValidationError describes malformed geometry on a specific record. It wraps
// one of the sentinel errors above so callers can use errors.Is.
type ValidationError struct {
	// Kind names the record type; empty means a window
	Kind   string
	ID     string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	kind := e.Kind
	if kind == "" {
		kind = "window"
	}
	return fmt.Sprintf("%s %s: invalid %s: %s", kind, e.ID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the invariants every calculator relies on. Nothing is
// defaulted here: a silent fix would hide extraction bugs upstream.
func (w Window) Validate() error {
	if r3.Norm(w.Normal) == 0 {
		return &ValidationError{ID: w.ID, Field: "normal", Reason: "zero-length vector", Err: ErrZeroNormal}
	}
	if w.Size.Width <= 0 || w.Size.Height <= 0 {
		return &ValidationError{
			ID:     w.ID,
			Field:  "size",
			Reason: fmt.Sprintf("%.3fx%.3f m", w.Size.Width, w.Size.Height),
			Err:    ErrNonPositiveSize,
		}
	}
	if w.Transmittance < 0 || w.Transmittance > 1 {
		return &ValidationError{
			ID:     w.ID,
			Field:  "transmittance",
			Reason: fmt.Sprintf("%.3f not in [0,1]", w.Transmittance),
			Err:    ErrOutOfRange,
		}
	}
	if w.FrameFactor < 0 || w.FrameFactor > 1 {
		return &ValidationError{
			ID:     w.ID,
			Field:  "frame_factor",
			Reason: fmt.Sprintf("%.3f not in [0,1]", w.FrameFactor),
			Err:    ErrOutOfRange,
		}
	}
	return nil
}

// Validate checks the building-level fields. Individual windows are not
// validated here so that one bad window does not reject the whole building.
func (b *Building) Validate() error {
	if b.Location.Latitude < -90 || b.Location.Latitude > 90 {
		return &ValidationError{Field: "location.latitude", Reason: fmt.Sprintf("%.4f", b.Location.Latitude), Err: ErrOutOfRange}
	}
	if b.Location.Longitude < -180 || b.Location.Longitude > 180 {
		return &ValidationError{Field: "location.longitude", Reason: fmt.Sprintf("%.4f", b.Location.Longitude), Err: ErrOutOfRange}
	}
	seen := make(map[string]struct{}, len(b.Windows))
	for _, w := range b.Windows {
		if _, dup := seen[w.ID]; dup {
			return &ValidationError{ID: w.ID, Field: "id", Reason: "duplicate window id", Err: ErrOutOfRange}
		}
		seen[w.ID] = struct{}{}
	}
	return nil
}

// Validate checks that the room is a real box and that an attached loggia
// has a usable depth
func (r Room) Validate() error {
	d := r.Dimensions
	if d.Depth <= 0 || d.Width <= 0 || d.Height <= 0 {
		return &ValidationError{
			Kind:   "room",
			ID:     r.ID,
			Field:  "dimensions",
			Reason: fmt.Sprintf("%.3fx%.3fx%.3f m", d.Depth, d.Width, d.Height),
			Err:    ErrNonPositiveSize,
		}
	}
	if r.Loggia != nil && r.Loggia.Depth < 0 {
		return &ValidationError{
			Kind:   "room",
			ID:     r.ID,
			Field:  "loggia.depth",
			Reason: fmt.Sprintf("%.3f m", r.Loggia.Depth),
			Err:    ErrNonPositiveSize,
		}
	}
	return nil
}
