// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/cxd309/trip-engine/internal/cache"
	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/store"
	"github.com/cxd309/trip-engine/internal/telemetry"
)

const (
	serviceName = "trip-engine"

	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 4 << 20

	// gzipMinSize is the smallest response worth compressing.
	gzipMinSize = 1024
)

var errStoreDisabled = errors.New("persistence is not configured")

// Options tune the HTTP boundary.
type Options struct {
	CORSOrigins []string
	RateLimit   float64 // requests per second per client, 0 disables limiting
	RateBurst   int
	MaxSteps    int // cap on estimated samples per simulation, 0 disables the cap
}

// API serves simulations, run history and acceleration curves.
type API struct {
	opts    Options
	cache   *cache.Cache
	store   *store.Store // nil when persistence is off
	metrics *telemetry.Metrics
	limiter *rateLimiter
	logger  zerolog.Logger
}

// New wires the API. st may be nil, in which case history and curve storage answer 503.
func New(opts Options, c *cache.Cache, st *store.Store, m *telemetry.Metrics, logger zerolog.Logger) *API {
	return &API{
		opts:    opts,
		cache:   c,
		store:   st,
		metrics: m,
		limiter: newRateLimiter(opts.RateLimit, opts.RateBurst),
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the router.
func (a *API) Handler() (http.Handler, error) {
	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.logger))
	r.Use(a.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Cache", "X-Run-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Handle("/metrics", a.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.limiter.Middleware)
		r.Use(func(next http.Handler) http.Handler { return gzip(next) })

		r.Post("/simulate", a.simulate)
		r.Get("/simulations", a.listSimulations)
		r.Get("/simulations/{id}", a.getSimulation)
		r.Get("/simulations/{id}/plots/{series}", a.plotSimulation)

		r.Route("/acceleration-curves", func(r chi.Router) {
			r.Post("/calculate", a.calculateCurve)
			r.Post("/", a.createCurve)
			r.Get("/", a.listCurves)
			r.Get("/default", a.defaultCurve)
			r.Get("/{id}", a.getCurve)
			r.Delete("/{id}", a.deleteCurve)
		})
	})

	return r, nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

// fail maps err to a status and writes it. Unexpected errors are logged and hidden.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errStoreDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a JSON body into v. An empty body leaves v untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

func (a *API) requireStore() error {
	if a.store == nil {
		return errStoreDisabled
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Float64("duration_ms", float64(time.Since(start).Microseconds())/1000).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("user_agent", r.UserAgent()).
				Msg("http_request")
		})
	}
}
