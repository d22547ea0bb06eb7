package timescaledb

import (
	"strings"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
)

// RunRecord is one row per building calculation run
type RunRecord struct {
	RunID            string    `gorm:"primaryKey;column:run_id"`
	BuildingID       string    `gorm:"column:building_id;not null;index"`
	BuildingName     string    `gorm:"column:building_name"`
	CalculationDate  time.Time `gorm:"column:calculation_date;type:date;not null"`
	Mode             string    `gorm:"column:mode;not null"`
	StartedAt        time.Time `gorm:"column:started_at;not null"`
	ElapsedMs        int64     `gorm:"column:elapsed_ms"`
	TotalWindows     int       `gorm:"column:total_windows"`
	CompliantWindows int       `gorm:"column:compliant_windows"`
	ComplianceRate   float64   `gorm:"column:compliance_rate"`
	LoggiaRooms      int       `gorm:"column:loggia_rooms"`
}

// TableName specifies the table name for RunRecord
func (RunRecord) TableName() string {
	return "calculation_runs"
}

// WindowRecord is one row per window per run. The table is a hypertable
// partitioned on Time, the start of the run.
type WindowRecord struct {
	Time              time.Time `gorm:"column:time;not null"`
	RunID             string    `gorm:"column:run_id;not null;index"`
	BuildingID        string    `gorm:"column:building_id;not null"`
	WindowID          string    `gorm:"column:window_id;not null"`
	WindowType        string    `gorm:"column:window_type"`
	InsolationSeconds *int64    `gorm:"column:insolation_seconds"`
	MeetsInsolation   *bool     `gorm:"column:meets_insolation"`
	KEO               *float64  `gorm:"column:keo"`
	MeetsKEO          *bool     `gorm:"column:meets_keo"`
	Compliant         bool      `gorm:"column:compliant"`
	Errors            string    `gorm:"column:errors"`
}

// TableName specifies the table name for WindowRecord
func (WindowRecord) TableName() string {
	return "window_results"
}

// records flattens r into rows. Absent sub-results become NULL columns.
func records(r *compliance.BuildingResult) (RunRecord, []WindowRecord) {
	summary := r.Summary()
	run := RunRecord{
		RunID:            r.RunID.String(),
		BuildingID:       r.BuildingID,
		BuildingName:     r.BuildingName,
		CalculationDate:  r.CalculationDate,
		Mode:             string(r.Mode),
		StartedAt:        r.StartedAt,
		ElapsedMs:        r.Elapsed.Milliseconds(),
		TotalWindows:     summary.Total,
		CompliantWindows: summary.Compliant,
		ComplianceRate:   summary.ComplianceRate,
		LoggiaRooms:      len(r.LoggiaRooms),
	}

	windows := make([]WindowRecord, 0, len(r.Windows))
	for _, w := range r.Windows {
		rec := WindowRecord{
			Time:       r.StartedAt,
			RunID:      run.RunID,
			BuildingID: r.BuildingID,
			WindowID:   w.WindowID,
			WindowType: w.WindowType,
			Compliant:  w.Compliant,
			Errors:     strings.Join(w.Errors, "; "),
		}
		if w.Insolation != nil {
			secs := w.Insolation.DurationSeconds
			meets := w.Insolation.MeetsRequirement
			rec.InsolationSeconds, rec.MeetsInsolation = &secs, &meets
		}
		if w.KEO != nil {
			total := w.KEO.Total
			meets := w.KEO.MeetsRequirement
			rec.KEO, rec.MeetsKEO = &total, &meets
		}
		windows = append(windows, rec)
	}
	return run, windows
}
