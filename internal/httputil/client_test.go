package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().
		AddResponse(http.StatusServiceUnavailable, `{"error":"busy"}`).
		AddErrorResponse(errors.New("connection reset")).
		AddResponse(http.StatusOK, `{"status":"healthy"}`)

	do := func() (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodPost, "http://classifier/predict", strings.NewReader("1\n2"))
		return m.Do(req)
	}

	resp, err := do()
	if err != nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("first = %v, %v", resp, err)
	}
	if _, err := do(); err == nil {
		t.Fatal("second should error")
	}
	resp, err = do()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != `{"status":"healthy"}` {
		t.Errorf("body = %s", b)
	}

	if m.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", m.RequestCount())
	}
	for i := 0; i < 3; i++ {
		if got := string(m.GetBody(i)); got != "1\n2" {
			t.Errorf("body %d = %q", i, got)
		}
	}
	if m.GetRequest(5) != nil || m.GetBody(-1) != nil {
		t.Error("out of range lookups should be nil")
	}
}

func TestMockHTTPClient_DoFuncAndDefaults(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://x/health", nil)
	resp, err := m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("default response = %v, %v", resp, err)
	}

	m.DefaultError = errors.New("down")
	if _, err := m.Do(req); err == nil {
		t.Fatal("expected default error")
	}

	m.DoFunc = func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: http.NoBody}, nil
	}
	resp, _ = m.Do(req)
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
