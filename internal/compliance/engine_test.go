package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/chrissnell/daylight/internal/metrics"
	"github.com/chrissnell/daylight/pkg/building"
	"gonum.org/v1/gonum/spatial/r3"
)

var june21 = time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu        sync.Mutex
	outcomes  map[string]int
	buildings int
	lastRate  float64
	lastErr   error
}

func (f *fakeRecorder) ObserveWindow(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]int{}
	}
	f.outcomes[outcome]++
}

func (f *fakeRecorder) ObserveInsolation(time.Duration) {}

func (f *fakeRecorder) ObserveBuilding(_ string, rate float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildings++
	f.lastRate = rate
	f.lastErr = err
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Insolation.TimeStep = time.Minute
	opts.Workers = 2
	return opts
}

func newEngine(t *testing.T, opts Options, rec Recorder) *Engine {
	t.Helper()
	e, err := NewEngine(opts, nil, rec)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func moscowBuilding() *building.Building {
	size := building.Size{Width: 1.5, Height: 1.2}
	return &building.Building{
		ID:       "b-1",
		Name:     "Tverskaya 7",
		Timezone: "Europe/Moscow",
		Location: building.Location{Latitude: 55.7558, Longitude: 37.6173},
		Windows: []building.Window{
			building.NewWindow("south", r3.Vec{Z: 1.5}, r3.Vec{Y: -1}, size),
			building.NewWindow("broken", r3.Vec{X: 3, Z: 1.5}, r3.Vec{}, size),
			building.NewWindow("down", r3.Vec{X: 6, Z: 3}, r3.Vec{Z: -1}, size),
		},
	}
}

func TestCalculateBuilding(t *testing.T) {
	rec := &fakeRecorder{}
	e := newEngine(t, testOptions(), rec)

	res, err := e.CalculateBuilding(context.Background(), moscowBuilding(), june21)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Windows) != 3 {
		t.Fatalf("expected 3 window results, got %d", len(res.Windows))
	}
	for i, id := range []string{"south", "broken", "down"} {
		if res.Windows[i].WindowID != id {
			t.Errorf("result %d is %q, expected %q", i, res.Windows[i].WindowID, id)
		}
	}

	south, broken, down := res.Windows[0], res.Windows[1], res.Windows[2]
	if !south.Compliant || south.Insolation == nil || south.KEO == nil {
		t.Errorf("south window: compliant=%v warnings=%v", south.Compliant, south.Warnings)
	}
	if broken.Compliant || len(broken.Errors) == 0 || broken.Insolation != nil {
		t.Errorf("broken window should carry an error and no results: %+v", broken)
	}
	if down.Compliant || down.Insolation.Duration != 0 {
		t.Errorf("downward window should fail insolation: %+v", down)
	}
	if !contains(down.Warnings, WarnInsolationNotMet) {
		t.Errorf("down warnings = %v, expected %q", down.Warnings, WarnInsolationNotMet)
	}

	s := res.Summary()
	if s.Total != 3 || s.Compliant != 1 || s.NonCompliant != 2 {
		t.Errorf("summary = %+v", s)
	}
	if res.RunID.String() == "" || res.CalculationDate.Day() != 21 {
		t.Errorf("run metadata missing: %v %v", res.RunID, res.CalculationDate)
	}

	if rec.outcomes[metrics.OutcomeError] != 1 || rec.outcomes[metrics.OutcomeCompliant] != 1 ||
		rec.outcomes[metrics.OutcomeNonCompliant] != 1 {
		t.Errorf("recorded outcomes = %v", rec.outcomes)
	}
	if rec.buildings != 1 || rec.lastErr != nil || rec.lastRate != s.ComplianceRate {
		t.Errorf("building observation: count=%d rate=%v err=%v", rec.buildings, rec.lastRate, rec.lastErr)
	}
}

func TestComplianceModes(t *testing.T) {
	b := moscowBuilding()
	b.Windows = b.Windows[:1]

	tests := []struct {
		name      string
		mode      Mode
		skipKEO   bool
		compliant bool
		warning   string
	}{
		{name: "lenient with both", mode: ModeLenient, compliant: true},
		{name: "strict with both", mode: ModeStrict, compliant: true},
		{name: "lenient without KEO", mode: ModeLenient, skipKEO: true, compliant: true},
		{name: "strict without KEO", mode: ModeStrict, skipKEO: true, compliant: false, warning: WarnKEOAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Mode = tt.mode
			opts.CalculateKEO = !tt.skipKEO

			res, err := newEngine(t, opts, nil).CalculateBuilding(context.Background(), b, june21)
			if err != nil {
				t.Fatal(err)
			}
			w := res.Windows[0]
			if w.Compliant != tt.compliant {
				t.Errorf("compliant = %v, expected %v (warnings %v)", w.Compliant, tt.compliant, w.Warnings)
			}
			if tt.warning != "" && !contains(w.Warnings, tt.warning) {
				t.Errorf("warnings = %v, expected %q", w.Warnings, tt.warning)
			}
		})
	}
}

func TestEmptyBuilding(t *testing.T) {
	b := moscowBuilding()
	b.Windows = nil

	res, err := newEngine(t, testOptions(), nil).CalculateBuilding(context.Background(), b, june21)
	if err != nil {
		t.Fatal(err)
	}
	if s := res.Summary(); s.Total != 0 || s.ComplianceRate != 0 {
		t.Errorf("summary = %+v, expected zeros", s)
	}
}

func TestBuildingLevelFailures(t *testing.T) {
	e := newEngine(t, testOptions(), nil)

	bad := moscowBuilding()
	bad.Timezone = "Mars/Olympus_Mons"
	if _, err := e.CalculateBuilding(context.Background(), bad, june21); err == nil {
		t.Error("unknown timezone accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.CalculateBuilding(ctx, moscowBuilding(), june21); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, expected context.Canceled", err)
	}
}

func TestLoggiaRooms(t *testing.T) {
	b := moscowBuilding()
	b.Windows = b.Windows[:1]
	dims := building.Dimensions{Depth: 5, Width: 4, Height: 3}
	b.Rooms = []building.Room{
		{ID: "open", Dimensions: dims, Loggia: &building.Loggia{ID: "l1", Depth: 1.4, HasExternalWindow: true, Facing: r3.Vec{Y: -1}}},
		{ID: "closed", Dimensions: dims, Loggia: &building.Loggia{ID: "l2", Depth: 1.4}},
		{ID: "plain", Dimensions: dims},
		{ID: "flat", Dimensions: building.Dimensions{Depth: 5, Width: 4}, Loggia: &building.Loggia{ID: "l3", HasExternalWindow: true}},
	}

	res, err := newEngine(t, testOptions(), nil).CalculateBuilding(context.Background(), b, june21)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.LoggiaRooms) != 3 {
		t.Fatalf("expected 3 loggia rooms, got %d", len(res.LoggiaRooms))
	}

	open, closed, flat := res.LoggiaRooms[0], res.LoggiaRooms[1], res.LoggiaRooms[2]
	if !open.Compliant {
		t.Errorf("south loggia should comply: %+v", open.Result)
	}
	if closed.Compliant || closed.Result.Insolation.DurationSeconds != 0 || closed.Result.KEO.Total != 0 {
		t.Errorf("closed loggia should be zero and non-compliant: %+v", closed.Result)
	}
	if open.Result.Grid == nil || open.Result.Grid.PointCount == 0 {
		t.Error("open loggia room should carry the KEO room grid")
	}
	if flat.Compliant || len(flat.Errors) == 0 {
		t.Errorf("flat room should carry a validation error: %+v", flat)
	}
	if s := res.Summary(); s.Total != 1 {
		t.Errorf("loggia rooms must not count as windows, summary %+v", s)
	}
}

func TestWindowResultEvaluate(t *testing.T) {
	pass := func(r *WindowResult) { r.Insolation = passingInsolation(); r.KEO = passingKEO() }

	tests := []struct {
		name    string
		build   func(*WindowResult)
		lenient bool
		strict  bool
	}{
		{name: "both pass", build: pass, lenient: true, strict: true},
		{name: "nothing attached", build: func(*WindowResult) {}, lenient: true, strict: false},
		{name: "only KEO", build: func(r *WindowResult) { r.KEO = passingKEO() }, lenient: true, strict: false},
		{
			name:    "insolation fails",
			build:   func(r *WindowResult) { pass(r); r.Insolation.MeetsRequirement = false },
			lenient: false, strict: false,
		},
		{
			name:    "error recorded",
			build:   func(r *WindowResult) { pass(r); r.AddError(errors.New("boom")) },
			lenient: false, strict: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWindowResult("w")
			tt.build(r)
			if got := r.Evaluate(ModeLenient); got != tt.lenient {
				t.Errorf("lenient = %v, expected %v", got, tt.lenient)
			}
			if got := r.Evaluate(ModeStrict); got != tt.strict {
				t.Errorf("strict = %v, expected %v", got, tt.strict)
			}
			if len(r.Warnings) != 0 {
				t.Error("Evaluate must not modify the result")
			}
		})
	}
}

func TestSummaryIsDerived(t *testing.T) {
	b := &BuildingResult{}
	if s := b.Summary(); s.ComplianceRate != 0 || s.Total != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	w1, w2 := NewWindowResult("a"), NewWindowResult("b")
	w1.Compliant = true
	b.Windows = []*WindowResult{w1, w2}
	if s := b.Summary(); s.ComplianceRate != 0.5 {
		t.Errorf("rate = %v, expected 0.5", s.ComplianceRate)
	}

	// Changing the list changes the summary; nothing is cached
	w2.Compliant = true
	if s := b.Summary(); s.Compliant != 2 || s.ComplianceRate != 1 {
		t.Errorf("summary after update = %+v", s)
	}

	out, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"summary":{"total_windows":2,"compliant_windows":2`) {
		t.Errorf("JSON lacks the derived summary: %s", out)
	}
}

func TestKEOPoint(t *testing.T) {
	e := newEngine(t, testOptions(), nil)
	size := building.Size{Width: 1, Height: 1}

	tests := []struct {
		name     string
		window   building.Window
		expected r3.Vec
	}{
		{"south facing", building.NewWindow("s", r3.Vec{X: 2, Z: 1.5}, r3.Vec{Y: -1}, size), r3.Vec{X: 2, Y: 1, Z: 0.8}},
		{"east facing, tilted", building.NewWindow("e", r3.Vec{X: 4, Y: 1, Z: 2}, r3.Vec{X: 3, Z: 3}, size), r3.Vec{X: 3, Y: 1, Z: 0.8}},
		{"skylight", building.NewWindow("k", r3.Vec{X: 1, Y: 1, Z: 3}, r3.Vec{Z: 1}, size), r3.Vec{X: 1, Y: 1, Z: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.keoPoint(tt.window); r3.Norm(r3.Sub(got, tt.expected)) > 1e-12 {
				t.Errorf("keoPoint = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestNewEngineRejectsBadOptions(t *testing.T) {
	opts := testOptions()
	opts.Mode = "sloppy"
	if _, err := NewEngine(opts, nil, nil); err == nil {
		t.Error("unknown mode accepted")
	}

	opts = testOptions()
	opts.KEO.GridDensity = 0
	if _, err := NewEngine(opts, nil, nil); err == nil {
		t.Error("zero grid density accepted")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCompact(t *testing.T) {
	res, err := newEngine(t, testOptions(), nil).CalculateBuilding(context.Background(), moscowBuilding(), june21)
	if err != nil {
		t.Fatal(err)
	}
	south := res.Windows[0]
	if len(south.Insolation.Periods) == 0 {
		t.Fatal("expected illumination instants on the live result")
	}

	c := res.Compact()
	if c.Windows[0].Insolation.Periods != nil {
		t.Error("compact copy still carries periods")
	}
	if len(c.Windows[0].Insolation.Intervals) != len(south.Insolation.Intervals) {
		t.Error("compact copy lost intervals")
	}

	b := moscowBuilding()
	b.Windows = b.Windows[:1]
	b.Rooms = []building.Room{{
		ID:         "open",
		Dimensions: building.Dimensions{Depth: 5, Width: 4, Height: 3},
		Loggia:     &building.Loggia{ID: "l1", Depth: 1.4, HasExternalWindow: true, Facing: r3.Vec{Y: -1}},
	}}
	withRoom, err := newEngine(t, testOptions(), nil).CalculateBuilding(context.Background(), b, june21)
	if err != nil {
		t.Fatal(err)
	}
	grid := withRoom.LoggiaRooms[0].Result.Grid
	cg := withRoom.Compact().LoggiaRooms[0].Result.Grid
	if cg.Points != nil || cg.PointCount != grid.PointCount || cg.Average != grid.Average {
		t.Errorf("compact grid = %+v, expected statistics without points", cg)
	}
	if len(grid.Points) == 0 {
		t.Error("Compact modified the original grid")
	}
	if len(south.Insolation.Periods) == 0 {
		t.Error("Compact modified the original")
	}
	if c.Summary() != res.Summary() || c.RunID != res.RunID {
		t.Error("compact copy changed the run identity or summary")
	}
}
