package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/ecg.report/internal/db"
	"github.com/banshee-data/ecg.report/internal/ecg/display"
	"github.com/banshee-data/ecg.report/internal/ecg/l3beats"
	"github.com/banshee-data/ecg.report/internal/ecg/l4classify"
	"github.com/banshee-data/ecg.report/internal/ecg/pipeline"
	"github.com/banshee-data/ecg.report/internal/httputil"
)

type analyzeResponse struct {
	Measurement *db.Measurement   `json:"measurement"`
	Result      l4classify.Result `json:"result"`
	HeartRate   l3beats.HeartRate `json:"heart_rate"`
	Trace       []display.Point   `json:"trace"`
	Peaks       []display.Point   `json:"peaks"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req pipeline.Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	m, an, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writeRunError(w, err)
		return
	}

	summary := *m
	summary.ECGData = nil
	httputil.WriteJSON(w, http.StatusCreated, analyzeResponse{
		Measurement: &summary,
		Result:      an.Result,
		HeartRate:   an.HeartRate,
		Trace:       an.Trace,
		Peaks:       an.Peaks,
	})
}

type listResponse struct {
	Measurements []db.Measurement `json:"measurements"`
	Total        int              `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := queryInt(r, "limit", db.DefaultListLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	limit = min(max(limit, 1), db.MaxListLimit)

	opts := db.ListOptions{UserID: r.URL.Query().Get("user_id"), Limit: limit, Offset: offset}
	rows, total, err := s.store.ListMeasurements(r.Context(), opts)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list measurements: %v", err))
		return
	}
	httputil.WriteJSONOK(w, listResponse{Measurements: rows, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleMeasurementByID(w http.ResponseWriter, r *http.Request) {
	id, view := measurementPath(r.URL.Path)
	if id == "" {
		httputil.BadRequest(w, "measurement id is required")
		return
	}

	switch {
	case view == "" && r.Method == http.MethodGet:
		s.handleGetMeasurement(w, r, id)
	case view == "" && r.Method == http.MethodDelete:
		s.handleDeleteMeasurement(w, r, id)
	case view == "chart" && r.Method == http.MethodGet:
		s.handleChart(w, r, id, false)
	case view == "plot.png" && r.Method == http.MethodGet:
		s.handleChart(w, r, id, true)
	case view == "" || view == "chart" || view == "plot.png":
		httputil.MethodNotAllowed(w)
	default:
		httputil.NotFound(w, "not found")
	}
}

func (s *Server) loadMeasurement(w http.ResponseWriter, r *http.Request, id string) *db.Measurement {
	m, err := s.store.GetMeasurement(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "measurement not found")
		return nil
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to get measurement: %v", err))
		return nil
	}
	return m
}

func (s *Server) handleGetMeasurement(w http.ResponseWriter, r *http.Request, id string) {
	if m := s.loadMeasurement(w, r, id); m != nil {
		httputil.WriteJSONOK(w, m)
	}
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request, id string) {
	err := s.store.DeleteMeasurement(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "measurement not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete measurement: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, id string, png bool) {
	m := s.loadMeasurement(w, r, id)
	if m == nil {
		return
	}
	rec, err := pipeline.FromWaveform(m.SourcePath, m.ECGData, s.options)
	if err != nil {
		writeRunError(w, err)
		return
	}
	subtitle := fmt.Sprintf("%s, %.0f%% confidence, %d BPM, %s risk",
		m.Prediction, m.Confidence*100, m.HeartRate, m.RiskLevel)
	chart := rec.Chart("ECG "+m.CreatedAt.Format("2006-01-02 15:04:05"), subtitle, s.options)

	var buf bytes.Buffer
	contentType := "text/html; charset=utf-8"
	if png {
		contentType = "image/png"
		err = display.WritePNG(&buf, chart)
	} else {
		err = display.RenderHTML(&buf, chart)
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	maxPoints, err := queryInt(r, "max_points", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	p, err := s.runner.Preview(r.Context(), r.URL.Query().Get("device_id"), maxPoints)
	if err != nil {
		writeRunError(w, err)
		return
	}
	httputil.WriteJSONOK(w, p)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	st, err := s.store.MeasurementStats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, st)
}
