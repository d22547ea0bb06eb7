// Package building holds the geometry model handed to the calculators: a
// building with a flat list of windows, optional rooms with loggias, and
// surrounding obstructions that can cast shadows.
package building

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Default optical properties used when a window record leaves them unset
const (
	DefaultGlassThickness = 4.0  // mm
	DefaultTransmittance  = 0.75 // glazing light transmission
	DefaultFrameFactor    = 0.70 // share of the opening that is glazing
)

// Size is a window's width and height in meters
type Size struct {
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

// Window is an opening in the facade. Center and Normal are expressed in the
// building's world frame (+X east, +Y north, +Z up); Normal points outward
// and does not have to be unit length.
type Window struct {
	ID             string     `json:"id"`
	Center         r3.Vec     `json:"center"`
	Normal         r3.Vec     `json:"normal"`
	Size           Size       `json:"size"`
	WindowType     string     `json:"window_type,omitempty"`
	GlassThickness float64    `json:"glass_thickness"`
	Transmittance  float64    `json:"transmittance"`
	FrameFactor    float64    `json:"frame_factor"`
	Properties     Properties `json:"properties,omitempty"`
}

// NewWindow returns a window with the default optical properties
func NewWindow(id string, center, normal r3.Vec, size Size) Window {
	return Window{
		ID:             id,
		Center:         center,
		Normal:         normal,
		Size:           size,
		GlassThickness: DefaultGlassThickness,
		Transmittance:  DefaultTransmittance,
		FrameFactor:    DefaultFrameFactor,
	}
}

// Area returns the window area in square meters
func (w Window) Area() float64 {
	return w.Size.Width * w.Size.Height
}

// WindowFactor is the combined transmittance and frame reduction
func (w Window) WindowFactor() float64 {
	return w.Transmittance * w.FrameFactor
}

// UnitNormal validates the window and returns its normalized outward normal
func (w Window) UnitNormal() (r3.Vec, error) {
	if err := w.Validate(); err != nil {
		return r3.Vec{}, err
	}
	return r3.Unit(w.Normal), nil
}

// Location is a geographic position in decimal degrees (north and east positive)
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Dimensions describes a rectangular room. Depth runs away from the window
// wall.
type Dimensions struct {
	Depth  float64 `json:"depth"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FloorArea returns depth × width
func (d Dimensions) FloorArea() float64 {
	return d.Depth * d.Width
}

// SurfaceArea returns floor + ceiling + four walls
func (d Dimensions) SurfaceArea() float64 {
	return 2*d.FloorArea() + 2*(d.Depth+d.Width)*d.Height
}

// Loggia is a recessed, roofed outdoor space in front of a room. Facing is
// the outward normal of the loggia opening in the world frame; when it is
// zero the opening normal is (-1, 0, 0).
type Loggia struct {
	ID                string  `json:"id"`
	Depth             float64 `json:"depth"`
	HasExternalWindow bool    `json:"has_external_window"`
	Facing            r3.Vec  `json:"facing,omitempty"`
}

// Room is a room that sits behind a loggia
type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Dimensions Dimensions `json:"dimensions"`
	Loggia     *Loggia    `json:"loggia,omitempty"`
}

// HasLoggia reports whether a loggia is attached to the room
func (r Room) HasLoggia() bool {
	return r.Loggia != nil
}

// Obstruction is an axis-aligned box (a neighbouring building, a balcony slab)
// that can shade windows
type Obstruction struct {
	ID  string `json:"id"`
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// Building is the unit of a calculation run. The window list is flat; rooms
// only appear where a loggia needs its own treatment.
type Building struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Windows      []Window      `json:"windows"`
	Rooms        []Room        `json:"rooms,omitempty"`
	Obstructions []Obstruction `json:"obstructions,omitempty"`
	Location     Location      `json:"location"`
	Timezone     string        `json:"timezone"`
	Properties   Properties    `json:"properties,omitempty"`
}

// WindowCount returns the number of windows in the building
func (b *Building) WindowCount() int {
	return len(b.Windows)
}

// TotalWindowArea sums the area of every window
func (b *Building) TotalWindowArea() float64 {
	var total float64
	for _, w := range b.Windows {
		total += w.Area()
	}
	return total
}
