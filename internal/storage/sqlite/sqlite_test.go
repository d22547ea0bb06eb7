package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/storage"
	"github.com/google/uuid"
)

type writeCounter struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (c *writeCounter) ObserveStorageWrite(_ string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func newStorage(t *testing.T, rec storage.WriteRecorder) *Storage {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "archive.db"), rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func result(buildingID string, started time.Time, compliant bool) *compliance.BuildingResult {
	start := time.Date(2024, 6, 21, 6, 0, 0, 0, time.UTC)
	w := compliance.NewWindowResult("w-1")
	w.Compliant = compliant
	w.Insolation = &insolation.Result{
		WindowID:         "w-1",
		Duration:         2 * time.Hour,
		DurationSeconds:  7200,
		MeetsRequirement: true,
		Periods:          []time.Time{start, start.Add(time.Second)},
		Intervals:        []insolation.Interval{{Start: start, End: start.Add(2 * time.Hour)}},
	}
	return &compliance.BuildingResult{
		RunID:           uuid.New(),
		BuildingID:      buildingID,
		BuildingName:    "Tverskaya 7",
		CalculationDate: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		Mode:            compliance.ModeLenient,
		Windows:         []*compliance.WindowResult{w},
		StartedAt:       started,
		Elapsed:         1500 * time.Millisecond,
	}
}

func TestLatestRun(t *testing.T) {
	s := newStorage(t, nil)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.LatestRun(ctx, "b-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("empty archive: error = %v, expected ErrNotFound", err)
	}

	older, newer := result("b-1", now.Add(-time.Hour), false), result("b-1", now, true)
	other := result("b-2", now.Add(time.Hour), false)
	for _, r := range []*compliance.BuildingResult{newer, older, other} {
		if err := s.StoreResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LatestRun(ctx, "b-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != newer.RunID {
		t.Errorf("latest run = %v, expected %v", got.RunID, newer.RunID)
	}
	if sum := got.Summary(); sum.Total != 1 || sum.Compliant != 1 {
		t.Errorf("decoded summary = %+v", sum)
	}
	ins := got.Windows[0].Insolation
	if ins.Duration != 2*time.Hour || len(ins.Intervals) != 1 {
		t.Errorf("decoded insolation = %+v", ins)
	}
	if ins.Periods != nil {
		t.Error("archived payload should not carry per-step instants")
	}
	if len(newer.Windows[0].Insolation.Periods) != 2 {
		t.Error("storing modified the caller's result")
	}

	runs, err := s.ListRuns(ctx, "b-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != newer.RunID.String() || runs[1].CalculationDate != "2024-06-21" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestDuplicateRunRejected(t *testing.T) {
	s := newStorage(t, nil)
	r := result("b-1", time.Now(), true)
	if err := s.StoreResult(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreResult(context.Background(), r); err == nil {
		t.Error("a run ID may only be archived once")
	}
}

func TestStorageEngineDrainsOnClose(t *testing.T) {
	rec := &writeCounter{}
	s := newStorage(t, rec)

	var wg sync.WaitGroup
	ch := s.StartStorageEngine(context.Background(), &wg)
	for i := 0; i < 5; i++ {
		ch <- result("b-1", time.Now().Add(time.Duration(i)*time.Second), true)
	}
	close(ch)
	wg.Wait()

	if rec.ok != 5 || rec.failed != 0 {
		t.Errorf("writes ok=%d failed=%d, expected 5 and 0", rec.ok, rec.failed)
	}
	runs, _ := s.ListRuns(context.Background(), "b-1", 10)
	if len(runs) != 5 {
		t.Errorf("archived %d runs, expected 5", len(runs))
	}
}

func TestCheckHealth(t *testing.T) {
	s := newStorage(t, nil)
	if h := s.CheckHealth(context.Background()); h.Status != storage.StatusHealthy {
		t.Errorf("health = %+v", h)
	}
	s.Close()
	if h := s.CheckHealth(context.Background()); h.Status != storage.StatusUnhealthy || h.Error == "" {
		t.Errorf("closed database reported %+v", h)
	}
}
