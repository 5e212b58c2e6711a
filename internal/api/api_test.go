package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/trip-engine/internal/cache"
	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/store"
	"github.com/cxd309/trip-engine/internal/telemetry"
)

type testServer struct {
	handler http.Handler
	store   *store.Store
	metrics *telemetry.Metrics
}

func newTestServer(t *testing.T, opts Options, withStore bool) *testServer {
	t.Helper()
	c, err := cache.New(cache.Config{Size: 16}, zerolog.Nop())
	require.NoError(t, err)

	ts := &testServer{metrics: telemetry.New()}
	if withStore {
		st, err := store.Open(context.Background(), store.MemoryPath, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		ts.store = st
	}
	if opts.CORSOrigins == nil {
		opts.CORSOrigins = []string{"*"}
	}

	h, err := New(opts, c, ts.store, ts.metrics, zerolog.Nop()).Handler()
	require.NoError(t, err)
	ts.handler = h
	return ts
}

func (ts *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func ptr(f float64) *float64 { return &f }

func shortTrip() engine.SimulationInput {
	return engine.SimulationInput{
		InitialAccel:   1,
		ThresholdSpeed: 10,
		MaxSpeed:       15,
		Stations: []engine.StationInput{
			{Name: "A", Position: ptr(0)},
			{Name: "B", Position: ptr(1000)},
			{Name: "C", Km: ptr(2)},
		},
		DwellTime:       10,
		TerminalLayover: 60,
		TimeStep:        0.5,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Options{}, false)
	rec := ts.do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "trip-engine"}, decode[map[string]string](t, rec))
}

func TestSimulate(t *testing.T) {
	ts := newTestServer(t, Options{}, true)

	rec := ts.do(http.MethodPost, "/simulate", shortTrip())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	runID := rec.Header().Get("X-Run-ID")
	assert.NotEmpty(t, runID)

	res := decode[engine.SimulationResult](t, rec)
	require.Len(t, res.Schedule, 4)
	assert.Equal(t, "A", res.Schedule[3].Station)
	assert.Len(t, res.Position, len(res.Time))
	require.NotNil(t, res.Diagnostics)

	t.Run("second request is served from cache", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/simulate", shortTrip())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Empty(t, rec.Header().Get("X-Run-ID"))

		cached := decode[engine.SimulationResult](t, rec)
		assert.Equal(t, res.Time, cached.Time)
	})

	t.Run("run is in the history", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/simulations/"+runID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		run := decode[store.Run](t, rec)
		assert.Equal(t, store.StatusCompleted, run.Status)
		require.NotNil(t, run.Result)
		assert.Len(t, run.Result.Time, len(res.Time))
	})

	t.Run("plots", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/simulations/"+runID+"/plots/velocity", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		_, err := png.Decode(rec.Body)
		assert.NoError(t, err)

		rec = ts.do(http.MethodGet, "/simulations/"+runID+"/plots/jerk", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "trip_engine_simulations_total")
		assert.Contains(t, body, `trip_engine_cache_lookups_total{result="hit"} 1`)
		assert.Contains(t, body, `trip_engine_api_requests_total{endpoint="/simulate",method="POST",status="200"} 2`)
	})
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, Options{MaxSteps: 100}, true)

	bad := shortTrip()
	bad.Stations = bad.Stations[:1]
	tooLong := shortTrip()

	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed json", `{"stations":`, "invalid JSON body"},
		{"too few stations", bad, "invalid simulation input"},
		{"too many samples", tooLong, "the limit is 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/simulate", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec)["error"], tt.want)
		})
	}

	rec := ts.do(http.MethodGet, "/simulations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[store.RunPage](t, rec)
	require.Equal(t, 2, page.Total, "rejected inputs are recorded, malformed bodies are not")
	for _, r := range page.Data {
		assert.Equal(t, store.StatusFailed, r.Status)
		assert.NotEmpty(t, r.Error)
	}

	rec = ts.do(http.MethodGet, "/simulations/"+page.Data[0].ID+"/plots/position", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSimulationsPagination(t *testing.T) {
	ts := newTestServer(t, Options{}, true)
	for _, dwell := range []float64{5, 10, 15} {
		in := shortTrip()
		in.DwellTime = dwell
		require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/simulate", in).Code)
	}

	rec := ts.do(http.MethodGet, "/simulations?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[store.RunPage](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 1)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/simulations?page=two", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/simulations/missing", nil).Code)
}

func TestCalculateCurve(t *testing.T) {
	ts := newTestServer(t, Options{}, false)

	t.Run("defaults", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/acceleration-curves/calculate", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode[kinematics.CurveData](t, rec)
		require.NotEmpty(t, data.Velocity)
		assert.Len(t, data.Acceleration, len(data.Velocity))
		assert.Equal(t, kinematics.DefaultCurveConfig().InitialAcceleration, data.Acceleration[0])
	})

	t.Run("partial config overrides defaults", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/acceleration-curves/calculate", `{"initial_acceleration": 0.8}`)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode[kinematics.CurveData](t, rec)
		assert.Equal(t, 0.8, data.Acceleration[0])
	})

	t.Run("invalid config", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/acceleration-curves/calculate", `{"loss_factor": -1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("png", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/acceleration-curves/calculate?format=png", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	})
}

func TestCurveCRUD(t *testing.T) {
	ts := newTestServer(t, Options{}, true)

	rec := ts.do(http.MethodPost, "/acceleration-curves", map[string]any{"name": "metro", "is_default": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	metro := decode[store.Curve](t, rec)
	assert.True(t, metro.IsDefault)
	assert.Equal(t, kinematics.DefaultCurveConfig(), metro.Config)

	cfg := kinematics.DefaultCurveConfig()
	cfg.MaxVelocity = 120
	rec = ts.do(http.MethodPost, "/acceleration-curves", map[string]any{"name": "regional", "config": cfg, "is_default": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	regional := decode[store.Curve](t, rec)

	rec = ts.do(http.MethodGet, "/acceleration-curves/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, regional.ID, decode[store.Curve](t, rec).ID)

	rec = ts.do(http.MethodGet, "/acceleration-curves", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	curves := decode[[]store.Curve](t, rec)
	require.Len(t, curves, 2)
	assert.Equal(t, regional.ID, curves[0].ID)
	assert.False(t, curves[1].IsDefault)

	rec = ts.do(http.MethodGet, "/acceleration-curves/"+metro.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metro", decode[store.Curve](t, rec).Name)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/acceleration-curves/"+metro.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/acceleration-curves/"+metro.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/acceleration-curves/"+metro.ID, nil).Code)

	t.Run("validation", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/acceleration-curves", map[string]any{"name": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		bad := kinematics.DefaultCurveConfig()
		bad.VelocityIncrement = 0
		rec = ts.do(http.MethodPost, "/acceleration-curves", map[string]any{"name": "bad", "config": bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWithoutStore(t *testing.T) {
	ts := newTestServer(t, Options{}, false)

	for _, path := range []string{"/simulations", "/simulations/x", "/acceleration-curves"} {
		rec := ts.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	rec := ts.do(http.MethodPost, "/simulate", shortTrip())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Run-ID"))
}

func TestMiddleware(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		ts := newTestServer(t, Options{RateLimit: 1, RateBurst: 1}, true)

		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/acceleration-curves", nil).Code)
		rec := ts.do(http.MethodGet, "/acceleration-curves", nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Contains(t, decode[map[string]string](t, rec)["error"], "rate limit")

		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", nil).Code, "health is not limited")
	})

	t.Run("gzip", func(t *testing.T) {
		ts := newTestServer(t, Options{}, false)
		rec := ts.do(http.MethodPost, "/simulate", shortTrip(), "Accept-Encoding", "gzip")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		ts := newTestServer(t, Options{CORSOrigins: []string{"http://localhost:4200"}}, false)
		rec := ts.do(http.MethodOptions, "/simulate", nil,
			"Origin", "http://localhost:4200",
			"Access-Control-Request-Method", "POST")
		assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := rl.now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(idleAfter + time.Second)
	assert.True(t, rl.allow("c"))
	assert.Len(t, rl.visitors, 1)

	assert.True(t, newRateLimiter(0, 0).allow("a"), "zero rate disables limiting")
}
