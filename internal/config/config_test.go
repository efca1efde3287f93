package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestGetterDefaults(t *testing.T) {
	cfg := Empty()

	if got := cfg.GetSaturationThreshold(); got != 1020 {
		t.Errorf("GetSaturationThreshold() = %v, want 1020", got)
	}
	if got := cfg.GetDeclutterRadius(); got != 10 {
		t.Errorf("GetDeclutterRadius() = %v, want 10", got)
	}
	if got := cfg.GetNeutralValue(); got != 512 {
		t.Errorf("GetNeutralValue() = %v, want 512", got)
	}
	if got := cfg.GetClassifierTimeout(); got != 60*time.Second {
		t.Errorf("GetClassifierTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetClassifierAttempts(); got != 3 {
		t.Errorf("GetClassifierAttempts() = %v, want 3", got)
	}
	if got := cfg.GetClassifierBackoff(); got != time.Second {
		t.Errorf("GetClassifierBackoff() = %v, want 1s", got)
	}
	if got := cfg.GetHeartRateSampleRateHz(); got != 360 {
		t.Errorf("GetHeartRateSampleRateHz() = %v, want 360", got)
	}
	if got := cfg.GetDisplaySampleRateHz(); got != 250 {
		t.Errorf("GetDisplaySampleRateHz() = %v, want 250", got)
	}
	if got := cfg.GetDisplayMaxPoints(); got != 2000 {
		t.Errorf("GetDisplayMaxPoints() = %v, want 2000", got)
	}
	if got := cfg.GetStoredMaxSamples(); got != 10000 {
		t.Errorf("GetStoredMaxSamples() = %v, want 10000", got)
	}
	if got := cfg.GetPrimaryPath(); got != "ECG/raw" {
		t.Errorf("GetPrimaryPath() = %q", got)
	}
	if got := cfg.GetFallbackPathTemplate(); got != "ECG/devices/{device}/raw" {
		t.Errorf("GetFallbackPathTemplate() = %q", got)
	}
	if !cfg.SampleRatesDiffer() {
		t.Error("default sample rates should differ")
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"classifier_attempts": 5, "display_half_range": 1.5}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetClassifierAttempts() != 5 {
		t.Errorf("attempts = %d, want 5", cfg.GetClassifierAttempts())
	}
	if cfg.GetDisplayHalfRange() != 1.5 {
		t.Errorf("half range = %v, want 1.5", cfg.GetDisplayHalfRange())
	}
	// untouched fields keep defaults
	if cfg.GetSaturationThreshold() != 1020 {
		t.Errorf("threshold = %v, want 1020", cfg.GetSaturationThreshold())
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetClassifierURL() != "http://localhost:5000" {
		t.Errorf("classifier url = %q", cfg.GetClassifierURL())
	}
	if cfg.GetDBPath() != "ecg_data.db" {
		t.Errorf("db path = %q", cfg.GetDBPath())
	}

	must := MustLoadDefaultConfig()
	if must.GetDisplayMaxPoints() != cfg.GetDisplayMaxPoints() {
		t.Error("MustLoadDefaultConfig disagrees with LoadConfig")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"non json extension", "config.yaml", `{}`},
		{"bad json", "bad.json", `{`},
		{"bad duration", "d.json", `{"classifier_timeout": "soon"}`},
		{"negative backoff", "b.json", `{"classifier_backoff": "-1s"}`},
		{"zero attempts", "a.json", `{"classifier_attempts": 0}`},
		{"threshold at neutral", "t.json", `{"saturation_threshold": 512}`},
		{"negative radius", "r.json", `{"declutter_radius": -1}`},
		{"zero half range", "h.json", `{"display_half_range": 0}`},
		{"zero rate", "s.json", `{"heart_rate_sample_rate_hz": 0}`},
		{"template without placeholder", "p.json", `{"fallback_path_template": "ECG/raw2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("ECG_CLASSIFIER_URL=http://flask:5000\nECG_CHUNK_STORE_AUTH=secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that already exist, so the keys the
	// file provides must be absent. t.Setenv restores them afterwards.
	for _, k := range []string{EnvClassifierURL, EnvChunkStoreAuth, EnvDBPath} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv(EnvChunkStoreURL, "https://ecg.example.test")

	cfg := Empty()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.GetChunkStoreURL() != "https://ecg.example.test" {
		t.Errorf("chunk store url = %q", cfg.GetChunkStoreURL())
	}
	if cfg.GetClassifierURL() != "http://flask:5000" {
		t.Errorf("classifier url = %q", cfg.GetClassifierURL())
	}
	if cfg.GetChunkStoreAuth() != "secret" {
		t.Errorf("auth = %q", cfg.GetChunkStoreAuth())
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := Empty()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}
