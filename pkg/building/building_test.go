package building

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const sampleDoc = `
id: b-001
name: Tverskaya 7
timezone: Europe/Moscow
location:
  latitude: 55.7558
  longitude: 37.6173
properties:
  source: tverskaya.ifc
  exporter: ifcopenshell
windows:
  - id: w1
    center: [0, 0, 1.5]
    normal: [0, -2, 0]
    size: [1.5, 1.2]
    transmittance: 0.8
  - id: w2
    center: [3, 0, 1.5]
    normal: [0, -1, 0]
    size: [1.0, 1.4]
rooms:
  - id: r1
    depth: 5
    width: 3.2
    height: 2.7
    loggia:
      id: l1
      depth: 1.4
      has_external_window: true
obstructions:
  - id: tower
    min: [10, -40, 0]
    max: [-10, -30, 60]
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if b.ID != "b-001" || b.Timezone != "Europe/Moscow" {
		t.Errorf("unexpected header: id=%q tz=%q", b.ID, b.Timezone)
	}
	if b.WindowCount() != 2 {
		t.Fatalf("WindowCount() = %d, expected 2", b.WindowCount())
	}

	w1 := b.Windows[0]
	if w1.Transmittance != 0.8 {
		t.Errorf("w1 transmittance = %v, expected 0.8", w1.Transmittance)
	}
	if w1.FrameFactor != DefaultFrameFactor || w1.GlassThickness != DefaultGlassThickness {
		t.Errorf("w1 defaults not applied: frame=%v glass=%v", w1.FrameFactor, w1.GlassThickness)
	}
	if w2 := b.Windows[1]; w2.Transmittance != DefaultTransmittance {
		t.Errorf("w2 transmittance = %v, expected default %v", w2.Transmittance, DefaultTransmittance)
	}

	if expected := 1.5*1.2 + 1.0*1.4; math.Abs(b.TotalWindowArea()-expected) > 1e-9 {
		t.Errorf("TotalWindowArea() = %v, expected %v", b.TotalWindowArea(), expected)
	}

	if len(b.Rooms) != 1 || !b.Rooms[0].HasLoggia() || b.Rooms[0].Loggia.Depth != 1.4 {
		t.Errorf("room/loggia not parsed: %+v", b.Rooms)
	}

	if len(b.Obstructions) != 1 {
		t.Fatalf("expected one obstruction, got %d", len(b.Obstructions))
	}
	ob := b.Obstructions[0]
	if ob.Min.X != -10 || ob.Max.X != 10 {
		t.Errorf("obstruction bounds not normalized: min=%v max=%v", ob.Min, ob.Max)
	}

	if keys := b.Properties.Keys(); len(keys) != 2 || keys[0] != "source" || keys[1] != "exporter" {
		t.Errorf("properties order lost: %v", keys)
	}
}

func TestParseRejectsMalformedVectors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "short center",
			doc:  "windows:\n  - id: w\n    center: [0, 0]\n    normal: [0, -1, 0]\n    size: [1, 1]\n",
		},
		{
			name: "size with three values",
			doc:  "windows:\n  - id: w\n    center: [0, 0, 1]\n    normal: [0, -1, 0]\n    size: [1, 1, 1]\n",
		},
		{
			name: "duplicate ids",
			doc: "windows:\n  - id: w\n    center: [0, 0, 1]\n    normal: [0, -1, 0]\n    size: [1, 1]\n" +
				"  - id: w\n    center: [1, 0, 1]\n    normal: [0, -1, 0]\n    size: [1, 1]\n",
		},
		{
			name: "latitude out of range",
			doc:  "location:\n  latitude: 123\n  longitude: 0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestWindowValidate(t *testing.T) {
	base := NewWindow("w", r3.Vec{Z: 1.5}, r3.Vec{Y: -1}, Size{Width: 1.5, Height: 1.2})

	tests := []struct {
		name     string
		mutate   func(*Window)
		sentinel error
	}{
		{name: "valid", mutate: func(*Window) {}},
		{name: "zero normal", mutate: func(w *Window) { w.Normal = r3.Vec{} }, sentinel: ErrZeroNormal},
		{name: "zero width", mutate: func(w *Window) { w.Size.Width = 0 }, sentinel: ErrNonPositiveSize},
		{name: "negative height", mutate: func(w *Window) { w.Size.Height = -1 }, sentinel: ErrNonPositiveSize},
		{name: "transmittance above one", mutate: func(w *Window) { w.Transmittance = 1.2 }, sentinel: ErrOutOfRange},
		{name: "negative frame factor", mutate: func(w *Window) { w.FrameFactor = -0.1 }, sentinel: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := base
			tt.mutate(&w)
			err := w.Validate()
			if tt.sentinel == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("Validate() = %v, expected %v", err, tt.sentinel)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.ID != "w" {
				t.Errorf("expected *ValidationError for window w, got %T", err)
			}
		})
	}
}

func TestUnitNormal(t *testing.T) {
	w := NewWindow("w", r3.Vec{}, r3.Vec{X: 3, Y: -4}, Size{Width: 1, Height: 1})
	n, err := w.UnitNormal()
	if err != nil {
		t.Fatalf("UnitNormal() error: %v", err)
	}
	if math.Abs(r3.Norm(n)-1) > 1e-12 || math.Abs(n.X-0.6) > 1e-12 || math.Abs(n.Y+0.8) > 1e-12 {
		t.Errorf("UnitNormal() = %v, expected (0.6, -0.8, 0)", n)
	}
}

func TestDimensions(t *testing.T) {
	d := Dimensions{Depth: 5, Width: 4, Height: 3}
	if d.FloorArea() != 20 {
		t.Errorf("FloorArea() = %v, expected 20", d.FloorArea())
	}
	// 2*20 + 2*(5+4)*3
	if d.SurfaceArea() != 94 {
		t.Errorf("SurfaceArea() = %v, expected 94", d.SurfaceArea())
	}
}

func TestPropertiesJSONOrder(t *testing.T) {
	var p Properties
	p.Set("zeta", 1)
	p.Set("alpha", "two")
	p.Set("zeta", 3)

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != `{"zeta":3,"alpha":"two"}` {
		t.Errorf("Marshal = %s", out)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, expected 2", p.Len())
	}
}

func TestRoomValidate(t *testing.T) {
	tests := []struct {
		name    string
		room    Room
		wantErr bool
	}{
		{"valid", Room{ID: "r", Dimensions: Dimensions{Depth: 5, Width: 4, Height: 3}}, false},
		{"zero depth", Room{ID: "r", Dimensions: Dimensions{Width: 4, Height: 3}}, true},
		{"negative height", Room{ID: "r", Dimensions: Dimensions{Depth: 5, Width: 4, Height: -3}}, true},
		{
			"negative loggia depth",
			Room{ID: "r", Dimensions: Dimensions{Depth: 5, Width: 4, Height: 3}, Loggia: &Loggia{ID: "l", Depth: -1}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.room.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrNonPositiveSize) {
				t.Fatalf("Validate() = %v, expected ErrNonPositiveSize", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Kind != "room" {
				t.Errorf("expected a room *ValidationError, got %v", err)
			}
		})
	}
}

func TestParseLoggiaFacing(t *testing.T) {
	doc := "rooms:\n  - id: r\n    depth: 5\n    width: 4\n    height: 3\n" +
		"    loggia:\n      id: l\n      depth: 1.2\n      has_external_window: true\n      facing: [0, -1, 0]\n"
	b, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := b.Rooms[0].Loggia.Facing; got != (r3.Vec{Y: -1}) {
		t.Errorf("facing = %v, expected (0, -1, 0)", got)
	}

	bad := "rooms:\n  - id: r\n    depth: 5\n    width: 4\n    height: 3\n" +
		"    loggia:\n      id: l\n      facing: [0, -1]\n"
	if _, err := Parse([]byte(bad)); err == nil {
		t.Error("expected an error for a two-component facing vector")
	}
}
