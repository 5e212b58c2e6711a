package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/plot"
)

type createCurveRequest struct {
	Name      string                  `json:"name"`
	Config    *kinematics.CurveConfig `json:"config"`
	IsDefault bool                    `json:"is_default"`
}

// calculateCurve returns curve data for the posted config, filling unset fields from the
// defaults. ?format=png returns the chart instead.
func (a *API) calculateCurve(w http.ResponseWriter, r *http.Request) {
	cfg := kinematics.DefaultCurveConfig()
	if err := decodeJSON(w, r, &cfg, true); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := kinematics.NewAccelerationCurve(cfg)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	if r.URL.Query().Get("format") == "png" {
		var buf bytes.Buffer
		if err := plot.WriteCurve(&buf, c.Data()); err != nil {
			a.fail(w, r, err)
			return
		}
		writePNG(w, buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, c.Data())
}

func (a *API) createCurve(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	var req createCurveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Name == "" {
		a.fail(w, r, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}
	cfg := kinematics.DefaultCurveConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	c, err := a.store.CreateCurve(r.Context(), req.Name, cfg, req.IsDefault)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) listCurves(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	curves, err := a.store.ListCurves(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, curves)
}

func (a *API) defaultCurve(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.store.DefaultCurve(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getCurve(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.store.GetCurve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteCurve(w http.ResponseWriter, r *http.Request) {
	if err := a.requireStore(); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteCurve(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
