package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/forecast"
	"github.com/Boflo-hub/pima-poa-league/internal/league"
)

// Forecaster is the part of forecast.Service the handlers use.
type Forecaster interface {
	Seasons(ctx context.Context) ([]string, error)
	Forecast(ctx context.Context, season string, o forecast.Options) (*forecast.Forecast, error)
	Run(ctx context.Context, req forecast.Request) (*forecast.Forecast, error)
	Insights(ctx context.Context, season string, q forecast.InsightsQuery) (*forecast.Insights, error)
}

// Handlers serves the forecast API.
type Handlers struct {
	svc    Forecaster
	logger logrus.FieldLogger
}

func NewHandlers(svc Forecaster, logger logrus.FieldLogger) *Handlers {
	return &Handlers{svc: svc, logger: logger.WithField("component", "api")}
}

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, league.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, league.ErrUnknownSeason):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, "cancelled"
	}
	if status >= 500 {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", league.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Seasons handles GET /v1/seasons.
func (h *Handlers) Seasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.svc.Seasons(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if seasons == nil {
		seasons = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"seasons": seasons})
}

// Forecast handles GET /v1/seasons/{season}/forecast.
func (h *Handlers) Forecast(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]

	var o forecast.Options
	runs, err := queryInt(r, "runs")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	seed, err := queryInt(r, "seed")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	workers, err := queryInt(r, "workers")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o.Runs, o.Seed, o.Workers = int(runs), seed, int(workers)
	o.Refresh = r.URL.Query().Get("refresh") == "true"

	f, err := h.svc.Forecast(r.Context(), season, o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Insights handles GET /v1/seasons/{season}/insights.
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	round, err := queryInt(r, "round")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	in, err := h.svc.Insights(r.Context(), mux.Vars(r)["season"], forecast.InsightsQuery{
		Player:   q.Get("player"),
		Opponent: q.Get("opponent"),
		Round:    int(round),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// Simulate handles POST /v1/simulate.
func (h *Handlers) Simulate(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: decoding request body: %v", league.ErrInvalidArgument, err))
		return
	}

	f, err := h.svc.Run(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
