package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cxd309/trip-engine/internal/cache"
	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/plot"
	"github.com/cxd309/trip-engine/internal/store"
)

const defaultPageSize = 10

func (a *API) simulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input engine.SimulationInput
	if err := decodeJSON(w, r, &input, false); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.checkInput(input); err != nil {
		a.metrics.ObserveFailure(true)
		a.recordRun(ctx, input, nil, err, 0)
		a.fail(w, r, err)
		return
	}

	key, err := cache.Key(input)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if res, ok := a.cache.Get(ctx, key); ok {
		a.metrics.ObserveCacheLookup(true)
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, res)
		return
	}
	a.metrics.ObserveCacheLookup(false)

	start := time.Now()
	res, err := engine.Run(input, a.logger)
	elapsed := time.Since(start)
	if err != nil {
		a.metrics.ObserveFailure(errors.Is(err, engine.ErrInvalidInput))
		a.recordRun(ctx, input, nil, err, elapsed)
		a.fail(w, r, err)
		return
	}
	a.metrics.ObserveSimulation(res, elapsed)

	if err := a.cache.Set(ctx, key, res); err != nil {
		a.logger.Warn().Err(err).Msg("failed to cache simulation result")
	}
	if id := a.recordRun(ctx, input, &res, nil, elapsed); id != "" {
		w.Header().Set("X-Run-ID", id)
	}

	a.logger.Info().
		Int("points", len(res.Time)).
		Int("stops", len(res.Schedule)).
		Dur("elapsed", elapsed).
		Msg("simulation completed")

	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, res)
}

// checkInput validates input and rejects requests whose trajectory would exceed MaxSteps.
func (a *API) checkInput(input engine.SimulationInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if a.opts.MaxSteps > 0 {
		if n := input.EstimatedSamples(); n > a.opts.MaxSteps {
			return fmt.Errorf("%w: simulation would produce about %d samples, the limit is %d",
				engine.ErrInvalidInput, n, a.opts.MaxSteps)
		}
	}
	return nil
}

// recordRun stores the run when persistence is on and returns its id. Failures to
// record are logged, never returned to the client.
func (a *API) recordRun(ctx context.Context, input engine.SimulationInput, res *engine.SimulationResult, runErr error, elapsed time.Duration) string {
	if a.store == nil {
		return ""
	}
	summary, err := a.store.SaveRun(ctx, input, res, runErr, elapsed)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to record simulation run")
		return ""
	}
	return summary.ID
}

func (a *API) listSimulations(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	runs, err := a.store.ListRuns(r.Context(), page, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *API) getSimulation(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) plotSimulation(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	series, err := plot.ParseSeries(chi.URLParam(r, "series"))
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if run.Result == nil {
		a.fail(w, r, fmt.Errorf("run %s has no result: %w", run.ID, store.ErrNotFound))
		return
	}

	var buf bytes.Buffer
	if err := plot.WriteSeries(&buf, *run.Result, series); err != nil {
		a.fail(w, r, err)
		return
	}
	writePNG(w, buf.Bytes())
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}
