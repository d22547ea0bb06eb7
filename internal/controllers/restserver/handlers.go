package restserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/daylight/internal/storage"
	"github.com/chrissnell/daylight/pkg/building"
	"github.com/chrissnell/daylight/pkg/responseformat"
	"github.com/chrissnell/daylight/pkg/solar"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// Calculate runs a compliance calculation over the building document in the
// request body and archives the result. ?date=YYYY-MM-DD selects the day,
// defaulting to today in the building's time zone; ?compact=true drops the
// per-step illumination instants from the response.
func (h *Handlers) Calculate(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	b, err := building.Parse(body)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	date := h.controller.now()
	if loc, err := time.LoadLocation(b.Timezone); err == nil {
		date = date.In(loc)
	}
	if ds := req.URL.Query().Get("date"); ds != "" {
		date, err = time.Parse(time.DateOnly, ds)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", ds))
			return
		}
	}

	result, err := h.controller.engine.CalculateBuilding(req.Context(), b, date)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		h.formatter.WriteError(w, req, status, err.Error())
		return
	}

	if h.controller.store != nil {
		if err := h.controller.store.Submit(req.Context(), result); err != nil {
			h.controller.logger.Warnw("could not queue run for storage", "run", result.RunID, "error", err)
		}
	}

	// A one-second step yields tens of thousands of instants per window, so
	// they are only sent on request
	if full, _ := strconv.ParseBool(req.URL.Query().Get("periods")); !full {
		result = result.Compact()
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, result)
}

// GetLatestRun returns the most recently archived run for a building
func (h *Handlers) GetLatestRun(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if h.controller.store == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "run archive is not configured")
		return
	}

	run, err := h.controller.store.LatestRun(req.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.formatter.WriteError(w, req, http.StatusNotFound, fmt.Sprintf("no archived run for building %q", id))
		return
	case err != nil:
		h.controller.logger.Errorw("could not read latest run", "building", id, "error", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "could not read archived run")
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, run)
}

// GetSun returns sunrise, sunset and the daylight length for a site.
// lat and lon are required; tz defaults to UTC and date to today.
func (h *Handlers) GetSun(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "lon must be a number")
		return
	}

	tz := q.Get("tz")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Sprintf("unknown time zone %q", tz))
		return
	}

	date := h.controller.now().In(loc)
	if ds := q.Get("date"); ds != "" {
		date, err = time.ParseInLocation(time.DateOnly, ds, loc)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", ds))
			return
		}
	}

	sun, err := solar.NewPositionCalculator(lat, lon, loc)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	rise, set, err := sun.SunriseSunset(date)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := SunResponse{
		Latitude:      lat,
		Longitude:     lon,
		Timezone:      loc.String(),
		Date:          date.Format(time.DateOnly),
		Sunrise:       solar.FormatSunTime(rise, loc),
		Sunset:        solar.FormatSunTime(set, loc),
		SunriseTime:   rise.In(loc),
		SunsetTime:    set.In(loc),
		DaylightHours: set.Sub(rise).Hours(),
		SolarNoon:     sun.Position(rise.Add(set.Sub(rise) / 2)),
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// GetHealth reports the storage backends. Any unhealthy backend makes the
// response a 503.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: storage.StatusHealthy}
	if h.controller.store != nil {
		resp.Storage = h.controller.store.HealthStatus()
		for _, hs := range resp.Storage {
			if hs.Status != storage.StatusHealthy {
				resp.Status = storage.StatusUnhealthy
			}
		}
	}

	status := http.StatusOK
	if resp.Status != storage.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.formatter.WriteResponse(w, req, status, resp)
}
