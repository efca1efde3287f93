// Package config loads the pipeline and service configuration.
//
// Every field is optional: unset fields fall back to the defaults returned by
// the Get* accessors, so a partial file overrides only what it names.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultConfigPath is the canonical location of the defaults file.
const DefaultConfigPath = "config/ecg.defaults.json"

// Environment overrides. Values from the process environment win over a
// .env file, which wins over the JSON file.
const (
	EnvChunkStoreURL  = "ECG_CHUNK_STORE_URL"
	EnvChunkStoreAuth = "ECG_CHUNK_STORE_AUTH"
	EnvClassifierURL  = "ECG_CLASSIFIER_URL"
	EnvDBPath         = "ECG_DB_PATH"
)

// Config holds the service configuration.
type Config struct {
	DBPath *string `json:"db_path,omitempty"`

	ChunkStoreURL        *string `json:"chunk_store_url,omitempty"`
	ChunkStoreAuth       *string `json:"chunk_store_auth,omitempty"`
	PrimaryPath          *string `json:"primary_path,omitempty"`
	FallbackPathTemplate *string `json:"fallback_path_template,omitempty"` // "{device}" is substituted
	FetchTimeout         *string `json:"fetch_timeout,omitempty"`

	ClassifierURL         *string `json:"classifier_url,omitempty"`
	ClassifierTimeout     *string `json:"classifier_timeout,omitempty"` // per attempt
	ClassifierAttempts    *int    `json:"classifier_attempts,omitempty"`
	ClassifierBackoff     *string `json:"classifier_backoff,omitempty"`
	ClassifierHealthCheck *bool   `json:"classifier_health_check,omitempty"`

	SaturationThreshold   *float64 `json:"saturation_threshold,omitempty"`
	DeclutterRadius       *int     `json:"declutter_radius,omitempty"`
	NeutralValue          *float64 `json:"neutral_value,omitempty"`
	BaselineMaxWindow     *int     `json:"baseline_max_window,omitempty"`
	BaselineWindowDivisor *int     `json:"baseline_window_divisor,omitempty"`
	DisplayBaseline       *float64 `json:"display_baseline,omitempty"`
	DisplayHalfRange      *float64 `json:"display_half_range,omitempty"`

	HeartRateSampleRateHz *float64 `json:"heart_rate_sample_rate_hz,omitempty"`
	DisplaySampleRateHz   *float64 `json:"display_sample_rate_hz,omitempty"`
	DisplayMaxPoints      *int     `json:"display_max_points,omitempty"`
	StoredMaxSamples      *int     `json:"stored_max_samples,omitempty"`
}

// Empty returns a config with every field unset.
func Empty() *Config {
	return &Config{}
}

// LoadConfig reads and validates a JSON config file.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads config/ecg.defaults.json from the repository
// root, searching upwards from the working directory. It panics if the file
// cannot be found.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/ecg/pipeline/
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// applies the ECG_* overrides to c. An empty envFile skips the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if v := os.Getenv(EnvChunkStoreURL); v != "" {
		c.ChunkStoreURL = &v
	}
	if v := os.Getenv(EnvChunkStoreAuth); v != "" {
		c.ChunkStoreAuth = &v
	}
	if v := os.Getenv(EnvClassifierURL); v != "" {
		c.ClassifierURL = &v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = &v
	}
	return c.Validate()
}

// Validate checks field ranges. Unset fields are not validated.
func (c *Config) Validate() error {
	for name, d := range map[string]*string{
		"fetch_timeout":      c.FetchTimeout,
		"classifier_timeout": c.ClassifierTimeout,
		"classifier_backoff": c.ClassifierBackoff,
	} {
		if d != nil && *d != "" {
			v, err := time.ParseDuration(*d)
			if err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
			}
			if v < 0 {
				return fmt.Errorf("%s must be non-negative, got %s", name, *d)
			}
		}
	}

	if c.ClassifierAttempts != nil && *c.ClassifierAttempts < 1 {
		return fmt.Errorf("classifier_attempts must be at least 1, got %d", *c.ClassifierAttempts)
	}
	if c.DeclutterRadius != nil && *c.DeclutterRadius < 0 {
		return fmt.Errorf("declutter_radius must be non-negative, got %d", *c.DeclutterRadius)
	}
	// A threshold at or below the neutral fill value would let a replacement
	// be saturated again on a second pass.
	if c.GetSaturationThreshold() <= c.GetNeutralValue() {
		return fmt.Errorf("saturation_threshold (%g) must be above neutral_value (%g)",
			c.GetSaturationThreshold(), c.GetNeutralValue())
	}
	if c.BaselineMaxWindow != nil && *c.BaselineMaxWindow < 1 {
		return fmt.Errorf("baseline_max_window must be at least 1, got %d", *c.BaselineMaxWindow)
	}
	if c.BaselineWindowDivisor != nil && *c.BaselineWindowDivisor < 1 {
		return fmt.Errorf("baseline_window_divisor must be at least 1, got %d", *c.BaselineWindowDivisor)
	}
	if c.DisplayHalfRange != nil && *c.DisplayHalfRange <= 0 {
		return fmt.Errorf("display_half_range must be positive, got %g", *c.DisplayHalfRange)
	}
	if c.HeartRateSampleRateHz != nil && *c.HeartRateSampleRateHz <= 0 {
		return fmt.Errorf("heart_rate_sample_rate_hz must be positive, got %g", *c.HeartRateSampleRateHz)
	}
	if c.DisplaySampleRateHz != nil && *c.DisplaySampleRateHz <= 0 {
		return fmt.Errorf("display_sample_rate_hz must be positive, got %g", *c.DisplaySampleRateHz)
	}
	if c.DisplayMaxPoints != nil && *c.DisplayMaxPoints < 1 {
		return fmt.Errorf("display_max_points must be at least 1, got %d", *c.DisplayMaxPoints)
	}
	if c.StoredMaxSamples != nil && *c.StoredMaxSamples < 1 {
		return fmt.Errorf("stored_max_samples must be at least 1, got %d", *c.StoredMaxSamples)
	}
	if c.FallbackPathTemplate != nil && *c.FallbackPathTemplate != "" &&
		!strings.Contains(*c.FallbackPathTemplate, DevicePlaceholder) {
		return fmt.Errorf("fallback_path_template must contain %s", DevicePlaceholder)
	}
	return nil
}

// DevicePlaceholder is replaced with the device identifier in the fallback path.
const DevicePlaceholder = "{device}"

// SampleRatesDiffer reports whether heart-rate timing and display use
// different sample rates.
func (c *Config) SampleRatesDiffer() bool {
	return c.GetHeartRateSampleRateHz() != c.GetDisplaySampleRateHz()
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) GetDBPath() string        { return getString(c.DBPath, "ecg_data.db") }
func (c *Config) GetChunkStoreURL() string { return getString(c.ChunkStoreURL, "") }
func (c *Config) GetChunkStoreAuth() string {
	return getString(c.ChunkStoreAuth, "")
}
func (c *Config) GetPrimaryPath() string { return getString(c.PrimaryPath, "ECG/raw") }
func (c *Config) GetFallbackPathTemplate() string {
	return getString(c.FallbackPathTemplate, "ECG/devices/"+DevicePlaceholder+"/raw")
}
func (c *Config) GetFetchTimeout() time.Duration {
	return getDuration(c.FetchTimeout, 15*time.Second)
}
func (c *Config) GetClassifierURL() string {
	return getString(c.ClassifierURL, "http://localhost:5000")
}
func (c *Config) GetClassifierTimeout() time.Duration {
	return getDuration(c.ClassifierTimeout, 60*time.Second)
}
func (c *Config) GetClassifierBackoff() time.Duration {
	return getDuration(c.ClassifierBackoff, time.Second)
}

func (c *Config) GetClassifierAttempts() int {
	if c.ClassifierAttempts == nil {
		return 3
	}
	return *c.ClassifierAttempts
}

func (c *Config) GetClassifierHealthCheck() bool {
	if c.ClassifierHealthCheck == nil {
		return true
	}
	return *c.ClassifierHealthCheck
}

func (c *Config) GetSaturationThreshold() float64 {
	if c.SaturationThreshold == nil {
		return 1020
	}
	return *c.SaturationThreshold
}

func (c *Config) GetDeclutterRadius() int {
	if c.DeclutterRadius == nil {
		return 10
	}
	return *c.DeclutterRadius
}

func (c *Config) GetNeutralValue() float64 {
	if c.NeutralValue == nil {
		return 512
	}
	return *c.NeutralValue
}

func (c *Config) GetBaselineMaxWindow() int {
	if c.BaselineMaxWindow == nil {
		return 500
	}
	return *c.BaselineMaxWindow
}

func (c *Config) GetBaselineWindowDivisor() int {
	if c.BaselineWindowDivisor == nil {
		return 20
	}
	return *c.BaselineWindowDivisor
}

func (c *Config) GetDisplayBaseline() float64 {
	if c.DisplayBaseline == nil {
		return 0
	}
	return *c.DisplayBaseline
}

func (c *Config) GetDisplayHalfRange() float64 {
	if c.DisplayHalfRange == nil {
		return 2.0
	}
	return *c.DisplayHalfRange
}

func (c *Config) GetHeartRateSampleRateHz() float64 {
	if c.HeartRateSampleRateHz == nil {
		return 360
	}
	return *c.HeartRateSampleRateHz
}

func (c *Config) GetDisplaySampleRateHz() float64 {
	if c.DisplaySampleRateHz == nil {
		return 250
	}
	return *c.DisplaySampleRateHz
}

func (c *Config) GetDisplayMaxPoints() int {
	if c.DisplayMaxPoints == nil {
		return 2000
	}
	return *c.DisplayMaxPoints
}

func (c *Config) GetStoredMaxSamples() int {
	if c.StoredMaxSamples == nil {
		return 10000
	}
	return *c.StoredMaxSamples
}
