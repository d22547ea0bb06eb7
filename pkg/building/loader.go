package building

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v2"
)

// Building documents are written by the geometry extraction tools (IFC, GLB,
// Revit exporters). JSON documents parse too since JSON is a YAML subset.
type buildingYAML struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Timezone     string            `yaml:"timezone"`
	Location     locationYAML      `yaml:"location"`
	Windows      []windowYAML      `yaml:"windows"`
	Rooms        []roomYAML        `yaml:"rooms,omitempty"`
	Obstructions []obstructionYAML `yaml:"obstructions,omitempty"`
	Properties   Properties        `yaml:"properties,omitempty"`
}

type locationYAML struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type windowYAML struct {
	ID             string     `yaml:"id"`
	Center         []float64  `yaml:"center"`
	Normal         []float64  `yaml:"normal"`
	Size           []float64  `yaml:"size"`
	WindowType     string     `yaml:"window_type,omitempty"`
	GlassThickness *float64   `yaml:"glass_thickness,omitempty"`
	Transmittance  *float64   `yaml:"transmittance,omitempty"`
	FrameFactor    *float64   `yaml:"frame_factor,omitempty"`
	Properties     Properties `yaml:"properties,omitempty"`
}

type roomYAML struct {
	ID     string      `yaml:"id"`
	Name   string      `yaml:"name,omitempty"`
	Depth  float64     `yaml:"depth"`
	Width  float64     `yaml:"width"`
	Height float64     `yaml:"height"`
	Loggia *loggiaYAML `yaml:"loggia,omitempty"`
}

type loggiaYAML struct {
	ID                string    `yaml:"id"`
	Depth             float64   `yaml:"depth"`
	HasExternalWindow bool      `yaml:"has_external_window"`
	Facing            []float64 `yaml:"facing,omitempty"`
}

type obstructionYAML struct {
	ID  string    `yaml:"id"`
	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`
}

// LoadFile reads a building document from disk
func LoadFile(path string) (*Building, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading building file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON building document. Missing optical properties
// fall back to the defaults; malformed vectors are rejected.
func Parse(data []byte) (*Building, error) {
	var doc buildingYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing building document: %w", err)
	}

	b := &Building{
		ID:       doc.ID,
		Name:     doc.Name,
		Timezone: doc.Timezone,
		Location: Location{
			Latitude:  doc.Location.Latitude,
			Longitude: doc.Location.Longitude,
		},
		Properties: doc.Properties,
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}

	for i, wy := range doc.Windows {
		w, err := wy.toWindow(i)
		if err != nil {
			return nil, err
		}
		b.Windows = append(b.Windows, w)
	}

	for _, ry := range doc.Rooms {
		room := Room{
			ID:   ry.ID,
			Name: ry.Name,
			Dimensions: Dimensions{
				Depth:  ry.Depth,
				Width:  ry.Width,
				Height: ry.Height,
			},
		}
		if ry.Loggia != nil {
			room.Loggia = &Loggia{
				ID:                ry.Loggia.ID,
				Depth:             ry.Loggia.Depth,
				HasExternalWindow: ry.Loggia.HasExternalWindow,
			}
			if len(ry.Loggia.Facing) > 0 {
				facing, err := vec3(ry.Loggia.Facing, "loggia "+ry.Loggia.ID+" facing")
				if err != nil {
					return nil, err
				}
				room.Loggia.Facing = facing
			}
		}
		b.Rooms = append(b.Rooms, room)
	}

	for _, oy := range doc.Obstructions {
		lo, err := vec3(oy.Min, "obstruction "+oy.ID+" min")
		if err != nil {
			return nil, err
		}
		hi, err := vec3(oy.Max, "obstruction "+oy.ID+" max")
		if err != nil {
			return nil, err
		}
		// Normalize so Min <= Max on every axis
		b.Obstructions = append(b.Obstructions, Obstruction{
			ID:  oy.ID,
			Min: r3.Vec{X: min(lo.X, hi.X), Y: min(lo.Y, hi.Y), Z: min(lo.Z, hi.Z)},
			Max: r3.Vec{X: max(lo.X, hi.X), Y: max(lo.Y, hi.Y), Z: max(lo.Z, hi.Z)},
		})
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (wy windowYAML) toWindow(idx int) (Window, error) {
	id := wy.ID
	if id == "" {
		id = fmt.Sprintf("window-%d", idx+1)
	}
	center, err := vec3(wy.Center, "window "+id+" center")
	if err != nil {
		return Window{}, err
	}
	normal, err := vec3(wy.Normal, "window "+id+" normal")
	if err != nil {
		return Window{}, err
	}
	if len(wy.Size) != 2 {
		return Window{}, fmt.Errorf("window %s size: expected [width, height], got %d values", id, len(wy.Size))
	}

	w := NewWindow(id, center, normal, Size{Width: wy.Size[0], Height: wy.Size[1]})
	w.WindowType = wy.WindowType
	w.Properties = wy.Properties
	if wy.GlassThickness != nil {
		w.GlassThickness = *wy.GlassThickness
	}
	if wy.Transmittance != nil {
		w.Transmittance = *wy.Transmittance
	}
	if wy.FrameFactor != nil {
		w.FrameFactor = *wy.FrameFactor
	}
	return w, nil
}

func vec3(v []float64, what string) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%s: expected [x, y, z], got %d values", what, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
