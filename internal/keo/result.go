package keo

import (
	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/spatial/r3"
)

// Components are the raw, unscaled KEO parts. Sky and InternalReflected lie in [0, 1].
type Components struct {
	Sky               float64 `json:"sky" msgpack:"sky"`
	ExternalReflected float64 `json:"external_reflected" msgpack:"external_reflected"`
	InternalReflected float64 `json:"internal_reflected" msgpack:"internal_reflected"`
}

// Result is KEO at one point. All percentages share the optics scale factor.
type Result struct {
	WindowID          string  `json:"window_id,omitempty" msgpack:"window_id,omitempty"`
	Point             r3.Vec  `json:"calculation_point" msgpack:"calculation_point"`
	Total             float64 `json:"keo_total" msgpack:"keo_total"`
	Sky               float64 `json:"keo_sky_component" msgpack:"keo_sky_component"`
	ExternalReflected float64 `json:"keo_external_reflected" msgpack:"keo_external_reflected"`
	InternalReflected float64 `json:"keo_internal_reflected" msgpack:"keo_internal_reflected"`
	MeetsRequirement  bool    `json:"meets_requirement" msgpack:"meets_requirement"`
	MinRequired       float64 `json:"min_required_keo" msgpack:"min_required_keo"`
	Details           Details `json:"details" msgpack:"details"`
}

// Details records the inputs behind a Result
type Details struct {
	Room        building.Dimensions `json:"room" msgpack:"room"`
	WindowCount int                 `json:"window_count" msgpack:"window_count"`
	WindowArea  float64             `json:"window_area" msgpack:"window_area"`
	Scale       float64             `json:"scale" msgpack:"scale"`
	Raw         Components          `json:"raw" msgpack:"raw"`
	Note        string              `json:"note,omitempty" msgpack:"note,omitempty"`
}

// PointValue is one grid sample
type PointValue struct {
	Point r3.Vec  `json:"point" msgpack:"point"`
	KEO   float64 `json:"keo" msgpack:"keo"`
}

// GridResult holds per-point KEO and statistics over the grid
type GridResult struct {
	Points           []PointValue `json:"grid_points" msgpack:"grid_points"`
	PointsX          int          `json:"points_x" msgpack:"points_x"`
	PointsY          int          `json:"points_y" msgpack:"points_y"`
	Average          float64      `json:"average_keo" msgpack:"average_keo"`
	Min              float64      `json:"min_keo" msgpack:"min_keo"`
	Max              float64      `json:"max_keo" msgpack:"max_keo"`
	PointCount       int          `json:"point_count" msgpack:"point_count"`
	MeetsRequirement bool         `json:"meets_requirement" msgpack:"meets_requirement"`
	MinRequired      float64      `json:"min_required_keo" msgpack:"min_required_keo"`
}
