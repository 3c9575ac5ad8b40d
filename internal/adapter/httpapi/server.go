// Package httpapi exposes the read API for stored readings, the subscription
// and test-alert intake, flood area geometry for the map client, and the
// health, readiness, and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kentwatersensors/floodwatch/internal/adapter/floodapi"
	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/store"
)

// notifyTimeout bounds the fire-and-forget dispatches triggered by the
// subscribe and test endpoints.
const notifyTimeout = 30 * time.Second

// RecordReader queries the record store.
type RecordReader interface {
	LatestSensorReading(ctx context.Context, deviceID string) (domain.SensorReading, error)
	SensorReadingsBetween(ctx context.Context, deviceID string, start, end time.Time) ([]domain.SensorReading, error)
	LatestAgencyReading(ctx context.Context, stationReference string) (domain.AgencyReading, error)
	AgencyReadingsBetween(ctx context.Context, stationReference string, start, end time.Time) ([]domain.AgencyReading, error)
	AddSubscriber(ctx context.Context, sub domain.Subscriber) error
}

// AreaFetcher retrieves flood area geometry from the Environment Agency API.
type AreaFetcher interface {
	FloodAreas(ctx context.Context, current bool, center domain.Point, distKm float64) (floodapi.FloodAreaSet, error)
}

// Notifier is the alert capability used by the intake endpoints.
type Notifier interface {
	Test(ctx context.Context, email string, lat, lon float64) error
	Welcome(ctx context.Context, email, phone string)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the HTTP surface.
type Server struct {
	httpServer *http.Server
	records    RecordReader
	areas      AreaFetcher
	notifier   Notifier
	home       domain.Point
	radiusKm   float64
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, records RecordReader, areas AreaFetcher, notifier Notifier, ready ReadinessChecker, home domain.Point, radiusKm float64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		records:  records,
		areas:    areas,
		notifier: notifier,
		home:     home,
		radiusKm: radiusKm,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/getData/{deviceId}", s.handleGetData)
	mux.HandleFunc("GET /api/getData/{deviceId}/{startDate}/{endDate}", s.handleGetData)
	mux.HandleFunc("GET /api/getEAData/{stationRef}", s.handleGetEAData)
	mux.HandleFunc("GET /api/getEAData/{stationRef}/{startDate}/{endDate}", s.handleGetEAData)
	mux.HandleFunc("GET /api/getFloodAreas", s.handleGetFloodAreas)
	mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /api/test", s.handleTest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleGetData serves sensor readings for a device: the latest one without
// date parameters, or all readings within [startDate, endDate] with them.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceId")

	if r.PathValue("startDate") == "" {
		reading, err := s.records.LatestSensorReading(r.Context(), deviceID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reading)
		return
	}

	start, end, err := parsePeriod(r.PathValue("startDate"), r.PathValue("endDate"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	readings, err := s.records.SensorReadingsBetween(r.Context(), deviceID, start, end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleGetEAData mirrors handleGetData for Environment Agency stations.
func (s *Server) handleGetEAData(w http.ResponseWriter, r *http.Request) {
	stationRef := r.PathValue("stationRef")

	if r.PathValue("startDate") == "" {
		reading, err := s.records.LatestAgencyReading(r.Context(), stationRef)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reading)
		return
	}

	start, end, err := parsePeriod(r.PathValue("startDate"), r.PathValue("endDate"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	readings, err := s.records.AgencyReadingsBetween(r.Context(), stationRef, start, end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleGetFloodAreas returns flood area objects paired with their polygon
// geometry as a two-element array: [items, polygons]. With ?current=1 it
// covers the currently active warnings instead of the home radius.
func (s *Server) handleGetFloodAreas(w http.ResponseWriter, r *http.Request) {
	current := r.URL.Query().Get("current") != ""

	set, err := s.areas.FloodAreas(r.Context(), current, s.home, s.radiusKm)
	if err != nil {
		s.logger.Error("flood areas fetch failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "flood area lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, []any{set.Items, set.Polygons})
}

type subscribeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location struct {
		Lat  float64 `json:"lat"`
		Long float64 `json:"long"`
	} `json:"location"`
}

// handleSubscribe stores the subscriber and fires the welcome messages.
// Dispatch outcomes are not reported back to the caller.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" && req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email or phone is required"})
		return
	}

	sub := domain.Subscriber{
		Name:          req.Name,
		Email:         req.Email,
		ContactNumber: req.Phone,
		Latitude:      req.Location.Lat,
		Longitude:     req.Location.Long,
		County:        "Kent",
	}

	if err := s.records.AddSubscriber(r.Context(), sub); err != nil {
		s.logger.Error("add subscriber failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store subscription"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.notifier.Welcome(ctx, req.Email, req.Phone)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "subscribed"})
}

type testRequest struct {
	Email string   `json:"email"`
	Lat   *float64 `json:"lat"`
	Long  *float64 `json:"long"`
}

// handleTest triggers a one-off preview digest for the given coordinates,
// delivered by email only. Coordinates are pointers so an absent field is
// distinguishable from an explicit zero.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Lat == nil || req.Long == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, lat and long are required"})
		return
	}

	lat, lon := *req.Lat, *req.Long
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Test(ctx, req.Email, lat, lon); err != nil {
			s.logger.Error("test alert failed", "email", req.Email, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no readings found"})
		return
	}
	s.logger.Error("record store query failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
}

// parsePeriod accepts YYYY-MM-DD dates; the end date is inclusive through the
// end of its day.
func parsePeriod(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", endStr)
	}
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %q precedes start date %q", endStr, startStr)
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
