// pkg/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/hub"
	"github.com/aleka07/twinsync/pkg/model"
)

// Broadcaster is the hub surface the API serves from.
type Broadcaster interface {
	Subscribe() *hub.Subscription
	Unsubscribe(sub *hub.Subscription)
	Pull() (model.Snapshot, bool)
}

// API serves slices of the last published snapshot. Missing data is an
// empty object or array, never an error status.
type API struct {
	hub Broadcaster
	log logrus.FieldLogger

	// PingInterval paces websocket keep-alives.
	PingInterval time.Duration
}

// NewAPI returns handlers reading from h.
func NewAPI(h Broadcaster, log logrus.FieldLogger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{hub: h, log: log, PingInterval: defaultPingInterval}
}

// Router mounts every route with the standard middleware stack.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		newResponseWriter(w, a.log).SendError(http.StatusNotFound, "no such endpoint")
	})

	// The websocket route outlives any request timeout.
	r.Get("/ws", a.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/healthz", HealthCheckHandler)
		r.Handle("/metrics", promhttp.Handler())
		r.Route("/api", func(r chi.Router) {
			r.Get("/thing", a.GetThing)
			r.Get("/temperature", a.GetTemperature)
			r.Get("/health", a.GetHealth)
			r.Get("/historical", a.GetHistorical)
		})
	})
	return r
}

// GetThing handles GET /api/thing.
func (a *API) GetThing(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, a.log)
	s, ok := a.hub.Pull()
	if !ok || s.Thing == nil {
		rw.SendJSON(http.StatusOK, map[string]any{})
		return
	}
	rw.SendJSON(http.StatusOK, s.Thing)
}

// GetTemperature handles GET /api/temperature.
func (a *API) GetTemperature(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, a.log)
	s, _ := a.hub.Pull()
	reading, ok := s.Reading()
	if !ok {
		rw.SendJSON(http.StatusOK, map[string]any{})
		return
	}
	rw.SendJSON(http.StatusOK, reading)
}

// GetHealth handles GET /api/health.
func (a *API) GetHealth(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, a.log)
	s, ok := a.hub.Pull()
	if !ok {
		rw.SendJSON(http.StatusOK, map[string]any{})
		return
	}
	hs := s.Health
	if hs.Statuses == nil {
		hs.Statuses = map[string]model.Status{}
	}
	rw.SendJSON(http.StatusOK, hs)
}

// GetHistorical handles GET /api/historical.
func (a *API) GetHistorical(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, a.log)
	s, _ := a.hub.Pull()
	hist := s.Historical
	if hist == nil {
		hist = []model.HistoryEntry{}
	}
	rw.SendJSON(http.StatusOK, hist)
}

// HealthCheckHandler reports process liveness.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
