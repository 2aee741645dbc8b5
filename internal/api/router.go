package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimit bounds the simulation endpoints. A zero Limit disables it.
type RateLimit struct {
	Limit float64
	Burst int
}

// NewRouter wires the routes of the forecast API.
func NewRouter(h *Handlers, limit RateLimit, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger.WithField("component", "http")))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/seasons", h.Seasons).Methods(http.MethodGet)
	v1.HandleFunc("/seasons/{season}/insights", h.Insights).Methods(http.MethodGet)

	sim := v1.NewRoute().Subrouter()
	if limit.Limit > 0 {
		sim.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(limit.Limit), max(limit.Burst, 1))))
	}
	sim.HandleFunc("/seasons/{season}/forecast", h.Forecast).Methods(http.MethodGet)
	sim.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			})
			switch {
			case rec.status >= 500:
				entry.Error("request")
			case rec.status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}

func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
