package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"searoute/metrics"
	"searoute/server/stream"
	"searoute/server/views"
	"searoute/store"
	"searoute/weather"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	channerics "github.com/niceyeti/channerics/channels"
)

const (
	// progressResolution bounds how often a websocket subscriber receives progress events.
	progressResolution = 50 * time.Millisecond
	feedPath           = "/v1/training/ws"
	indexRoutes        = 20
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument, cors)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/calculate-route", s.handleCalculateRoute).Methods(http.MethodPost, http.MethodOptions)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/routes", s.handleCreateRoute).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/routes", s.handleListRoutes).Methods(http.MethodGet)
	v1.HandleFunc("/routes/{id}", s.handleGetRoute).Methods(http.MethodGet)
	v1.HandleFunc("/weather", s.handleWeather).Methods(http.MethodGet)
	v1.HandleFunc("/training/status", s.handleTrainingStatus).Methods(http.MethodGet)
	v1.HandleFunc(strings.TrimPrefix(feedPath, "/v1"), s.handleTrainingFeed).Methods(http.MethodGet)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context(), indexRoutes)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Could not list routes", err.Error(), r.URL.Path)
		return
	}
	var buf bytes.Buffer
	if err := s.page.Render(&buf, views.PageData{
		Routes:   recs,
		Running:  s.status.running.Load(),
		Episodes: s.status.episodes.Load(),
	}); err != nil {
		s.logger.WithError(err).Error("rendering index")
		writeProblem(w, http.StatusInternalServerError, "Could not render page", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RouteRequests.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	job, err := s.validateRouteRequest(&req)
	if err != nil {
		metrics.RouteRequests.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid route request", err.Error(), r.URL.Path)
		return
	}
	rec, ok := s.runJob(w, r, job)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CalculateRouteResponse keeps the legacy endpoint's [lat, lon] pair encoding.
type CalculateRouteResponse struct {
	ID      string       `json:"id"`
	Route   [][2]float64 `json:"route"`
	Reached bool         `json:"reached"`
}

func (s *Server) handleCalculateRoute(w http.ResponseWriter, r *http.Request) {
	var req CalculateRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RouteRequests.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	job, err := s.validateRouteRequest(&RouteRequest{Start: req.StartPoint, End: req.EndPoint})
	if err != nil {
		metrics.RouteRequests.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid route request", err.Error(), r.URL.Path)
		return
	}
	rec, ok := s.runJob(w, r, job)
	if !ok {
		return
	}

	resp := CalculateRouteResponse{ID: rec.ID, Reached: rec.Route.Reached}
	for _, p := range rec.Route.Positions {
		resp.Route = append(resp.Route, [2]float64{p.Lat, p.Lon})
	}
	writeJSON(w, http.StatusOK, resp)
}

// runJob rate limits, computes and stores a route, writing the failure response itself.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request, job routeJob) (store.Record, bool) {
	if !s.limiter.Allow() {
		metrics.RouteRequests.WithLabelValues("throttled").Inc()
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too many route requests", "", r.URL.Path)
		return store.Record{}, false
	}

	rec, err := s.computeRoute(r.Context(), job)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RouteRequests.WithLabelValues("timeout").Inc()
		writeProblem(w, http.StatusServiceUnavailable, "Training deadline exceeded", err.Error(), r.URL.Path)
		return rec, false
	case err != nil:
		metrics.RouteRequests.WithLabelValues("cancelled").Inc()
		writeProblem(w, http.StatusServiceUnavailable, "Training cancelled", err.Error(), r.URL.Path)
		return rec, false
	}

	if err := s.store.Save(r.Context(), rec); err != nil {
		s.logger.WithError(err).WithField("job", rec.ID).Error("saving route")
		metrics.RouteRequests.WithLabelValues("error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Could not store route", err.Error(), r.URL.Path)
		return rec, false
	}
	metrics.RouteRequests.WithLabelValues("ok").Inc()
	return rec, true
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Route not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Could not load route", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be in [1, 100]", r.URL.Path)
			return
		}
		limit = n
	}
	recs, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Could not list routes", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

// WeatherResponse is a point forecast with its safety assessment.
type WeatherResponse struct {
	weather.Sample
	Time int  `json:"t"`
	Safe bool `json:"safe"`
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, t, err := parseWeatherQuery(q.Get)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid weather query", err.Error(), r.URL.Path)
		return
	}
	sample := s.predict(p, t)
	writeJSON(w, http.StatusOK, WeatherResponse{
		Sample: sample,
		Time:   t,
		Safe:   s.opts.Params.Limits().Safe(sample),
	})
}

// TrainingStatus reports training activity across all requests.
type TrainingStatus struct {
	Running    int64    `json:"running"`
	Episodes   int64    `json:"episodes"`
	LastReward float64  `json:"lastReward"`
	BestReward *float64 `json:"bestReward,omitempty"`
	// MeanReward averages the total reward of every episode trained so far.
	MeanReward float64 `json:"meanReward"`
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	status := TrainingStatus{
		Running:    s.status.running.Load(),
		Episodes:   s.status.episodes.Load(),
		LastReward: s.status.lastReward.AtomicRead(),
	}
	if status.Episodes > 0 {
		status.MeanReward = s.status.totalReward.AtomicRead() / float64(status.Episodes)
	}
	if best := s.status.bestReward.AtomicRead(); !math.IsInf(best, -1) {
		status.BestReward = &best
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTrainingFeed streams progress events of every training run over a websocket, optionally
// filtered to one job by ?job=.
func (s *Server) handleTrainingFeed(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	updates := channerics.OrDone(r.Context().Done(), events)
	if job := r.URL.Query().Get("job"); job != "" {
		updates = filterJob(r.Context().Done(), updates, job)
	}

	cli, err := stream.NewClient(updates, progressResolution, w, r)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade")
		return
	}
	if err := cli.Sync(); err != nil {
		s.logger.WithError(err).Debug("training feed closed")
	}
}

func filterJob(done <-chan struct{}, events <-chan ProgressEvent, job string) <-chan ProgressEvent {
	out := make(chan ProgressEvent)
	go func() {
		defer close(out)
		for ev := range channerics.OrDone(done, events) {
			if ev.JobID != job {
				continue
			}
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
	}()
	return out
}
