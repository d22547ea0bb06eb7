package compliance

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/keo"
	"github.com/chrissnell/daylight/internal/loggia"
	"github.com/chrissnell/daylight/internal/metrics"
	"github.com/chrissnell/daylight/pkg/building"
	"github.com/chrissnell/daylight/pkg/solar"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultPointOffset is how far into the room the per-window KEO point lies (m)
const DefaultPointOffset = 1.0

// DefaultRoom is used for per-window KEO when the window has no room of its own
var DefaultRoom = building.Dimensions{Depth: 5, Width: 4, Height: 3}

// Recorder receives calculation metrics. *metrics.Collector implements it.
type Recorder interface {
	ObserveWindow(outcome string, elapsed time.Duration)
	ObserveInsolation(d time.Duration)
	ObserveBuilding(buildingID string, rate float64, err error)
}

// Options configure an Engine
type Options struct {
	Insolation          insolation.Config
	KEO                 keo.Config
	CalculateInsolation bool
	CalculateKEO        bool
	// MinDuration is the insolation threshold; nil means no threshold
	MinDuration *time.Duration
	Room        building.Dimensions
	PointOffset float64
	Mode        Mode
	Workers     int
}

// DefaultOptions returns both calculations enabled with regulatory defaults
func DefaultOptions() Options {
	minDuration := insolation.DefaultMinDuration
	return Options{
		Insolation:          insolation.DefaultConfig(),
		KEO:                 keo.DefaultConfig(),
		CalculateInsolation: true,
		CalculateKEO:        true,
		MinDuration:         &minDuration,
		Room:                DefaultRoom,
		PointOffset:         DefaultPointOffset,
		Mode:                ModeLenient,
		Workers:             runtime.NumCPU(),
	}
}

// Engine runs building-wide calculations. Each window is one task in a
// bounded worker pool; one failing window does not stop the others.
type Engine struct {
	opts     Options
	keo      *keo.Calculator
	logger   *zap.SugaredLogger
	recorder Recorder
}

// NewEngine validates opts and returns an Engine. logger and recorder may be nil.
func NewEngine(opts Options, logger *zap.SugaredLogger, recorder Recorder) (*Engine, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Mode == "" {
		opts.Mode = ModeLenient
	}
	if opts.Mode != ModeLenient && opts.Mode != ModeStrict {
		return nil, fmt.Errorf("unknown compliance mode %q", opts.Mode)
	}
	if opts.Insolation.TimeStep <= 0 {
		return nil, fmt.Errorf("insolation time step must be positive, got %v", opts.Insolation.TimeStep)
	}

	k, err := keo.New(opts.KEO)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Engine{
		opts:     opts,
		keo:      k,
		logger:   logger,
		recorder: recorder,
	}, nil
}

// Options returns the engine's configuration
func (e *Engine) Options() Options {
	return e.opts
}

// CalculateBuilding evaluates every window of b, and every room with a
// loggia, for date's calendar day. Per-window failures are recorded on the
// window; only building-level problems and cancellation return an error.
func (e *Engine) CalculateBuilding(ctx context.Context, b *building.Building, date time.Time) (*BuildingResult, error) {
	started := time.Now()

	result, err := e.calculateBuilding(ctx, b, date)
	if err != nil {
		if e.recorder != nil {
			e.recorder.ObserveBuilding(b.ID, 0, err)
		}
		return nil, err
	}

	result.StartedAt = started
	result.Elapsed = time.Since(started)
	summary := result.Summary()
	if e.recorder != nil {
		e.recorder.ObserveBuilding(b.ID, summary.ComplianceRate, nil)
	}
	e.logger.Infow("building calculated",
		"building", b.ID,
		"run", result.RunID,
		"date", result.CalculationDate.Format(time.DateOnly),
		"windows", summary.Total,
		"compliant", summary.Compliant,
		"rate", summary.ComplianceRate,
		"elapsed", result.Elapsed)
	return result, nil
}

func (e *Engine) calculateBuilding(ctx context.Context, b *building.Building, date time.Time) (*BuildingResult, error) {
	if b == nil {
		return nil, errors.New("nil building")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("building %s: loading timezone %q: %w", b.ID, b.Timezone, err)
	}
	sun, err := solar.NewPositionCalculator(b.Location.Latitude, b.Location.Longitude, loc)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", b.ID, err)
	}

	insCfg := e.opts.Insolation
	insCfg.Obstructions = b.Obstructions
	ins, err := insolation.New(sun, insCfg)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", b.ID, err)
	}

	result := &BuildingResult{
		RunID:           uuid.New(),
		BuildingID:      b.ID,
		BuildingName:    b.Name,
		CalculationDate: sun.LocalDay(date),
		Mode:            e.opts.Mode,
		Windows:         make([]*WindowResult, len(b.Windows)),
	}

	if len(b.Windows) == 0 {
		e.logger.Warnw("building has no windows", "building", b.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, w := range b.Windows {
		g.Go(func() error {
			wr, err := e.evaluateWindow(gctx, ins, w, date)
			if err != nil {
				return err
			}
			result.Windows[i] = wr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building %s: %w", b.ID, err)
	}

	handler := loggia.NewHandler(ins, e.keo)
	for _, room := range b.Rooms {
		if !room.HasLoggia() {
			continue
		}
		rr, err := e.evaluateLoggiaRoom(ctx, handler, room, date)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", b.ID, err)
		}
		result.LoggiaRooms = append(result.LoggiaRooms, rr)
	}

	return result, nil
}

// evaluateWindow returns an error only when the context is done
func (e *Engine) evaluateWindow(ctx context.Context, ins *insolation.Calculator, w building.Window, date time.Time) (*WindowResult, error) {
	started := time.Now()
	wr := NewWindowResult(w.ID)
	wr.WindowType = w.WindowType

	if err := w.Validate(); err != nil {
		wr.AddError(err)
	} else {
		if e.opts.CalculateInsolation {
			res, err := ins.CalculateDuration(ctx, w, date, e.opts.MinDuration)
			switch {
			case isContextErr(err):
				return nil, err
			case err != nil:
				wr.AddError(fmt.Errorf("insolation: %w", err))
			default:
				wr.Insolation = res
				if e.recorder != nil {
					e.recorder.ObserveInsolation(res.Duration)
				}
			}
		}
		if e.opts.CalculateKEO {
			optics := keo.OpticsFor(w)
			wr.KEO = e.keo.SideLighting(e.opts.Room, []building.Window{w}, e.keoPoint(w), optics)
		}
	}

	wr.Finalize(e.opts.Mode)
	wr.Elapsed = time.Since(started)

	outcome := metrics.OutcomeNonCompliant
	switch {
	case len(wr.Errors) > 0:
		outcome = metrics.OutcomeError
		e.logger.Warnw("window calculation failed", "window", w.ID, "errors", wr.Errors)
	case wr.Compliant:
		outcome = metrics.OutcomeCompliant
	}
	if e.recorder != nil {
		e.recorder.ObserveWindow(outcome, wr.Elapsed)
	}
	e.logger.Debugw("window calculated", "window", w.ID, "outcome", outcome, "elapsed", wr.Elapsed)

	return wr, nil
}

// keoPoint places the calculation point PointOffset metres into the room
// from the window, at working height
func (e *Engine) keoPoint(w building.Window) r3.Vec {
	p := r3.Vec{X: w.Center.X, Y: w.Center.Y, Z: keo.WorkingHeight}
	horizontal := r3.Vec{X: w.Normal.X, Y: w.Normal.Y}
	if r3.Norm(horizontal) == 0 {
		return p
	}
	return r3.Sub(p, r3.Scale(e.opts.PointOffset, r3.Unit(horizontal)))
}

func (e *Engine) evaluateLoggiaRoom(ctx context.Context, h *loggia.Handler, room building.Room, date time.Time) (*RoomResult, error) {
	rr := &RoomResult{RoomID: room.ID, Errors: []string{}}

	res, err := h.CalculateRoom(ctx, room, date, e.opts.MinDuration)
	switch {
	case isContextErr(err):
		return nil, err
	case err != nil:
		rr.Errors = append(rr.Errors, err.Error())
		e.logger.Warnw("loggia room calculation failed", "room", room.ID, "error", err)
	default:
		rr.Result = res
		rr.Compliant = res.IsCompliant()
	}
	return rr, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
