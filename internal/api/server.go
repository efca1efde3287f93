// Package api serves the measurement HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/ecg.report/internal/classifier"
	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/pipeline"
	"github.com/banshee-data/ecg.report/internal/httputil"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/version"
)

// Runner runs analyses and previews.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*db.Measurement, *pipeline.Analysis, error)
	Preview(ctx context.Context, deviceID string, maxPoints int) (*pipeline.Preview, error)
}

// MeasurementStore reads and deletes stored measurements.
type MeasurementStore interface {
	GetMeasurement(ctx context.Context, id string) (*db.Measurement, error)
	ListMeasurements(ctx context.Context, opts db.ListOptions) ([]db.Measurement, int, error)
	DeleteMeasurement(ctx context.Context, id string) error
	MeasurementStats(ctx context.Context, userID string) (db.Stats, error)
}

// HealthChecker probes the classification service.
type HealthChecker interface {
	Health(ctx context.Context) (classifier.Health, error)
}

type Server struct {
	runner  Runner
	store   MeasurementStore
	health  HealthChecker
	options pipeline.Options
}

// NewServer returns a server. options must match the ones runner uses so
// that stored recordings are charted the way they were analysed.
func NewServer(runner Runner, store MeasurementStore, health HealthChecker, options pipeline.Options) *Server {
	return &Server{runner: runner, store: store, health: health, options: options}
}

const measurementsPrefix = "/api/measurements/"

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/measurements/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/measurements", s.handleListMeasurements)
	mux.HandleFunc(measurementsPrefix, s.handleMeasurementByID)
	mux.HandleFunc("/api/ecg/preview", s.handlePreview)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/classifier/health", s.handleClassifierHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}

// writeRunError maps pipeline and classifier failures onto status codes.
// StatusClientClosedRequest is recorded when the caller disconnects before
// an analysis finishes.
const StatusClientClosedRequest = 499

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrDataUnavailable):
		httputil.NotFound(w, "no data")
	case errors.Is(err, classifier.ErrTimeout):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, classifier.ErrUnavailable), errors.Is(err, classifier.ErrRejected):
		httputil.WriteJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// the caller has gone away
		monitoring.Logf("request cancelled: %v", err)
		httputil.WriteJSONError(w, StatusClientClosedRequest, "request cancelled")
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) handleClassifierHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	h, err := s.health.Health(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	httputil.WriteJSONOK(w, h)
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return n, nil
}

// measurementPath splits /api/measurements/{id}[/{view}].
func measurementPath(path string) (id, view string) {
	rest := strings.Trim(strings.TrimPrefix(path, measurementsPrefix), "/")
	id, view, _ = strings.Cut(rest, "/")
	return id, view
}
