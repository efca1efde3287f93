// Package classifier talks to the beat classification service.
//
// The service accepts a newline-delimited waveform as a multipart upload and
// answers with a final class, a per-class confidence list and the per-beat
// classes it voted over.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/ecg/l4classify"
	"github.com/banshee-data/ecg.report/internal/httputil"
	"github.com/banshee-data/ecg.report/internal/monitoring"
	"github.com/banshee-data/ecg.report/internal/retry"
	"github.com/banshee-data/ecg.report/internal/timeutil"
)

const (
	predictPath = "/predict"
	healthPath  = "/health"
	// FileField is the multipart field carrying the waveform.
	FileField = "file"
	fileName  = "ecg_data.txt"

	maxResponseBody = 1 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds each attempt.
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	HTTP     httputil.HTTPClient // nil uses a default *http.Client
	Clock    timeutil.Clock      // nil uses the real clock
}

// Client calls the classification service.
type Client struct {
	opts Options
	http httputil.HTTPClient
}

// New returns a Client. Zero option values get the service defaults.
func New(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{opts: opts, http: hc}
}

// response is the wire form. Fields are raw so a wrongly-typed value marks
// the prediction instead of failing the whole decode.
type response struct {
	FinalPrediction json.RawMessage `json:"final_prediction"`
	ClassConfidence json.RawMessage `json:"class_confidence"`
	PerBeat         []int           `json:"per_beat_predictions"`
	// Older deployments sent a single class and confidence.
	Prediction json.RawMessage `json:"prediction"`
	Confidence json.RawMessage `json:"confidence"`
	Error      string          `json:"error"`
}

// EncodeWaveform renders samples the way the service reads them: one value
// per line.
func EncodeWaveform(w l1chunks.Waveform) []byte {
	var b bytes.Buffer
	for i, v := range w {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.Bytes()
}

func buildUpload(w l1chunks.Waveform) ([]byte, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(FileField, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(EncodeWaveform(w)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

// Predict uploads a model-ready waveform and decodes the reply. Every
// attempt sends identical bytes. 4xx replies fail at once with ErrRejected;
// network errors, 5xx replies and undecodable bodies are retried.
func (c *Client) Predict(ctx context.Context, w l1chunks.Waveform) (l4classify.Prediction, error) {
	body, contentType, err := buildUpload(w)
	if err != nil {
		return l4classify.Prediction{}, fmt.Errorf("failed to build upload: %w", err)
	}

	var pred l4classify.Prediction
	policy := retry.Policy{Attempts: c.opts.Attempts, Backoff: c.opts.Backoff, Clock: c.opts.Clock}
	err = retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		p, err := c.predictOnce(ctx, body, contentType)
		if err != nil {
			monitoring.Logf("classifier attempt %d/%d failed: %v", attempt, c.opts.Attempts, err)
			var se *StatusError
			if errors.As(err, &se) && errors.Is(se, ErrRejected) {
				return retry.Permanent(err)
			}
			return err
		}
		pred = p
		return nil
	})
	if err == nil {
		return pred, nil
	}
	switch {
	case errors.Is(err, ErrRejected):
		return l4classify.Prediction{}, err
	case errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return l4classify.Prediction{}, ctx.Err()
		}
		return l4classify.Prediction{}, fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return l4classify.Prediction{}, err
	default:
		return l4classify.Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (c *Client) predictOnce(ctx context.Context, body []byte, contentType string) (l4classify.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return l4classify.Prediction{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return l4classify.Prediction{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return l4classify.Prediction{}, fmt.Errorf("failed to read response: %w", err)
	}

	var r response
	decodeErr := json.Unmarshal(data, &r)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return l4classify.Prediction{}, &StatusError{StatusCode: resp.StatusCode, Message: r.Error}
	}
	if decodeErr != nil {
		return l4classify.Prediction{}, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return r.prediction(), nil
}

func (r response) prediction() l4classify.Prediction {
	p := l4classify.Prediction{PerBeat: r.PerBeat}

	idx := r.FinalPrediction
	if isAbsent(idx) {
		idx = r.Prediction
	}
	if !isAbsent(idx) {
		var n int
		if err := json.Unmarshal(idx, &n); err == nil {
			p.Index = &n
		} else {
			p.IndexUnparseable = true
			monitoring.Warnw("unparseable class index", "raw", string(idx))
		}
	}

	if !isAbsent(r.ClassConfidence) {
		var vals []float64
		if err := json.Unmarshal(r.ClassConfidence, &vals); err != nil {
			p.VectorMalformed = true
		} else if v, err := l4classify.ParseVector(vals); err != nil {
			p.VectorMalformed = true
		} else {
			p.Vector = &v
		}
		if p.VectorMalformed {
			monitoring.Warnw("malformed confidence vector", "raw", string(r.ClassConfidence))
		}
	}

	if !isAbsent(r.Confidence) {
		var f float64
		if err := json.Unmarshal(r.Confidence, &f); err == nil {
			p.Confidence = &f
		} else {
			monitoring.Warnw("unparseable confidence", "raw", string(r.Confidence))
		}
	}
	return p
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Health is the reply of the service health probe.
type Health struct {
	Status string `json:"status"`
	Device string `json:"device,omitempty"`
}

// Health probes the service once, without retries.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+healthPath, nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var h Health
	if resp.StatusCode != http.StatusOK {
		return h, &StatusError{StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&h); err != nil {
		return h, fmt.Errorf("%w: failed to decode health: %v", ErrUnavailable, err)
	}
	return h, nil
}
