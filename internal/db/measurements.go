package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no measurement has the requested ID.
var ErrNotFound = errors.New("measurement not found")

// Measurement is one stored analysis result. Rows are never updated.
type Measurement struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id,omitempty"`
	DeviceID          string    `json:"device_id,omitempty"`
	SourcePath        string    `json:"source_path"`
	ECGData           []float64 `json:"ecg_data,omitempty"`
	HeartRate         int       `json:"heart_rate"`
	HeartRateMeasured bool      `json:"heart_rate_measured"`
	ClassIndex        int       `json:"class_index"`
	Prediction        string    `json:"prediction"`
	Confidence        float64   `json:"confidence"`
	RiskLevel         string    `json:"risk_level"`
	Recommendations   []string  `json:"recommendations"`
	Flags             []string  `json:"flags,omitempty"`
	Symptoms          []string  `json:"symptoms,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NormalPrediction is the label that does not count as abnormal.
const NormalPrediction = "Normal"

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// InsertMeasurement stores m. An empty ID is filled with a new UUID and a
// zero CreatedAt with the current time.
func (db *DB) InsertMeasurement(ctx context.Context, m *Measurement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	ecgData, err := encodeJSON(m.ECGData)
	if err != nil {
		return fmt.Errorf("failed to encode ecg_data: %w", err)
	}
	recs, err := encodeJSON(m.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}
	flags, err := encodeJSON(m.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}
	symptoms, err := encodeJSON(m.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to encode symptoms: %w", err)
	}

	measured := 0
	if m.HeartRateMeasured {
		measured = 1
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO measurements (
			id, user_id, device_id, source_path, ecg_data,
			heart_rate, heart_rate_measured, class_index, prediction, confidence,
			risk_level, recommendations, flags, symptoms, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.DeviceID, m.SourcePath, ecgData,
		m.HeartRate, measured, m.ClassIndex, m.Prediction, m.Confidence,
		m.RiskLevel, recs, flags, symptoms, m.Notes, m.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

const measurementColumns = `
	id, user_id, device_id, source_path, %s,
	heart_rate, heart_rate_measured, class_index, prediction, confidence,
	risk_level, recommendations, flags, symptoms, notes, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (*Measurement, error) {
	var (
		m                              Measurement
		ecgData, recs, flags, symptoms string
		measured                       int
		createdAt                      int64
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.DeviceID, &m.SourcePath, &ecgData,
		&m.HeartRate, &measured, &m.ClassIndex, &m.Prediction, &m.Confidence,
		&m.RiskLevel, &recs, &flags, &symptoms, &m.Notes, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	m.HeartRateMeasured = measured == 1
	m.CreatedAt = time.Unix(0, createdAt)

	if ecgData != "" {
		if err := json.Unmarshal([]byte(ecgData), &m.ECGData); err != nil {
			return nil, fmt.Errorf("failed to decode ecg_data: %w", err)
		}
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{recs, &m.Recommendations}, {flags, &m.Flags}, {symptoms, &m.Symptoms}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode measurement %s: %w", m.ID, err)
		}
	}
	if len(m.ECGData) == 0 {
		m.ECGData = nil
	}
	if len(m.Flags) == 0 {
		m.Flags = nil
	}
	if len(m.Symptoms) == 0 {
		m.Symptoms = nil
	}
	return &m, nil
}

// GetMeasurement returns the measurement with id, including its waveform.
func (db *DB) GetMeasurement(ctx context.Context, id string) (*Measurement, error) {
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM measurements WHERE id = ?", fmt.Sprintf(measurementColumns, "ecg_data")), id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return m, nil
}

// ListOptions selects a page of measurements. An empty UserID lists every
// user.
type ListOptions struct {
	UserID string
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ListMeasurements returns a page of measurements, newest first, without
// waveforms, and the total number matching the filter.
func (db *DB) ListMeasurements(ctx context.Context, opts ListOptions) ([]Measurement, int, error) {
	opts = opts.normalized()

	where, args := "", []any{}
	if opts.UserID != "" {
		where, args = "WHERE user_id = ?", append(args, opts.UserID)
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM measurements "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count measurements: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM measurements %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		fmt.Sprintf(measurementColumns, "'[]'"), where)
	rows, err := db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list measurements: %w", err)
	}
	defer rows.Close()

	out := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list measurements: %w", err)
	}
	return out, total, nil
}

// DeleteMeasurement removes the measurement with id.
func (db *DB) DeleteMeasurement(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM measurements WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarises a user's history.
type Stats struct {
	Total            int            `json:"total"`
	Abnormal         int            `json:"abnormal"`
	AverageHeartRate float64        `json:"average_heart_rate"`
	ByPrediction     map[string]int `json:"by_prediction"`
	ByRisk           map[string]int `json:"by_risk"`
	LastMeasuredAt   *time.Time     `json:"last_measured_at,omitempty"`
}

// MeasurementStats aggregates the history of userID, or of everyone when
// userID is empty.
func (db *DB) MeasurementStats(ctx context.Context, userID string) (Stats, error) {
	s := Stats{ByPrediction: map[string]int{}, ByRisk: map[string]int{}}

	where, args := "", []any{}
	if userID != "" {
		where, args = "WHERE user_id = ?", []any{userID}
	}

	var (
		avg  sql.NullFloat64
		last sql.NullInt64
	)
	err := db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN prediction != ? THEN 1 ELSE 0 END), 0),
			AVG(heart_rate),
			MAX(created_at)
		FROM measurements %s`, where), append([]any{NormalPrediction}, args...)...,
	).Scan(&s.Total, &s.Abnormal, &avg, &last)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate measurements: %w", err)
	}
	if avg.Valid {
		s.AverageHeartRate = avg.Float64
	}
	if last.Valid {
		t := time.Unix(0, last.Int64)
		s.LastMeasuredAt = &t
	}

	for col, dst := range map[string]map[string]int{"prediction": s.ByPrediction, "risk_level": s.ByRisk} {
		rows, err := db.QueryContext(ctx,
			fmt.Sprintf("SELECT %s, COUNT(*) FROM measurements %s GROUP BY %s", col, where, col), args...)
		if err != nil {
			return s, fmt.Errorf("failed to group by %s: %w", col, err)
		}
		for rows.Next() {
			var (
				k string
				n int
			)
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return s, err
			}
			dst[k] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return s, err
		}
	}
	return s, nil
}
