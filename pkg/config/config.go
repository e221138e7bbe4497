package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfacon/thermosync/pkg/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultUsername       = "Alfacon"
	defaultServer         = "https://alfacon.aws.thinger.io"
	defaultWeatherBaseURL = "https://api.openweathermap.org"
	defaultLatitude       = 37.9838 // Athens
	defaultLongitude      = 23.7275
	defaultDevicePrefix   = "CAL"
	defaultDeviceStart    = 251
	defaultDeviceEnd      = 351

	defaultProbeConcurrency = 10
	defaultBatchSize        = 8
	defaultBatchConcurrency = 3
	defaultDispatchDelay    = 100 * time.Millisecond
	defaultMaxRetries       = 3
	defaultRetryBaseDelay   = time.Second
	defaultProbeTimeout     = 10 * time.Second
	defaultPushTimeout      = 15 * time.Second
	defaultWeatherTimeout   = 30 * time.Second

	// Ratio of delivered over reachable devices. Reachable is the
	// denominator on purpose: most of the identifier space is unassigned
	// and must not depress the metric.
	defaultSuccessThreshold = 0.8
)

// Config is the full immutable configuration for one run. It is built once
// at process start and passed into the coordinator; no component reads
// ambient state.
type Config struct {
	// Device platform
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Server   string `yaml:"server"`

	// Weather provider
	WeatherAPIKey  string  `yaml:"weather_api_key"`
	WeatherBaseURL string  `yaml:"weather_base_url"`
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`

	// Candidate identifier space
	DevicePrefix string `yaml:"device_prefix"`
	DeviceStart  int    `yaml:"device_start"`
	DeviceEnd    int    `yaml:"device_end"`

	// Concurrency and pacing
	ProbeConcurrency int           `yaml:"probe_concurrency"`
	BatchSize        int           `yaml:"batch_size"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	DispatchDelay    time.Duration `yaml:"dispatch_delay"`

	// Retry behavior
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// Per-call timeouts
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	PushTimeout    time.Duration `yaml:"push_timeout"`
	WeatherTimeout time.Duration `yaml:"weather_timeout"`

	// Run classification
	SuccessThreshold float64 `yaml:"success_threshold"`

	// Optional best-effort diagnostic sinks (empty disables)
	SnapshotPath  string `yaml:"snapshot_path"`
	HeartbeatPath string `yaml:"heartbeat_path"`
	HistoryPath   string `yaml:"history_path"`
}

// ConfigurationError reports a missing or invalid required setting. It is
// fatal to the whole run and surfaced before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// Space returns the candidate identifier space described by the config.
func (c *Config) Space() types.IdentifierSpace {
	return types.IdentifierSpace{Prefix: c.DevicePrefix, Start: c.DeviceStart, End: c.DeviceEnd}
}

// Load reads configuration from environment variables (optionally .env).
// When file is non-empty, the YAML file is applied first and environment
// variables override it.
func Load(file string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaults()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Username:         defaultUsername,
		Server:           defaultServer,
		WeatherBaseURL:   defaultWeatherBaseURL,
		Latitude:         defaultLatitude,
		Longitude:        defaultLongitude,
		DevicePrefix:     defaultDevicePrefix,
		DeviceStart:      defaultDeviceStart,
		DeviceEnd:        defaultDeviceEnd,
		ProbeConcurrency: defaultProbeConcurrency,
		BatchSize:        defaultBatchSize,
		BatchConcurrency: defaultBatchConcurrency,
		DispatchDelay:    defaultDispatchDelay,
		MaxRetries:       defaultMaxRetries,
		RetryBaseDelay:   defaultRetryBaseDelay,
		ProbeTimeout:     defaultProbeTimeout,
		PushTimeout:      defaultPushTimeout,
		WeatherTimeout:   defaultWeatherTimeout,
		SuccessThreshold: defaultSuccessThreshold,
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Token, "THINGER_TOKEN")
	setString(&cfg.Username, "THINGER_USERNAME")
	setString(&cfg.Server, "THINGER_SERVER")
	setString(&cfg.WeatherAPIKey, "WEATHER_API_KEY")
	setString(&cfg.WeatherBaseURL, "WEATHER_BASE_URL")
	setString(&cfg.DevicePrefix, "DEVICE_PREFIX")
	setString(&cfg.SnapshotPath, "SNAPSHOT_PATH")
	setString(&cfg.HeartbeatPath, "HEARTBEAT_PATH")
	setString(&cfg.HistoryPath, "HISTORY_PATH")

	if err := setFloat(&cfg.Latitude, "WEATHER_LAT"); err != nil {
		return err
	}
	if err := setFloat(&cfg.Longitude, "WEATHER_LON"); err != nil {
		return err
	}
	if err := setFloat(&cfg.SuccessThreshold, "SUCCESS_THRESHOLD"); err != nil {
		return err
	}

	if err := setInt(&cfg.DeviceStart, "DEVICE_START"); err != nil {
		return err
	}
	if err := setInt(&cfg.DeviceEnd, "DEVICE_END"); err != nil {
		return err
	}
	if err := setInt(&cfg.ProbeConcurrency, "PROBE_CONCURRENCY"); err != nil {
		return err
	}
	if err := setInt(&cfg.BatchSize, "BATCH_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.BatchConcurrency, "BATCH_CONCURRENCY"); err != nil {
		return err
	}
	if err := setInt(&cfg.MaxRetries, "MAX_RETRIES"); err != nil {
		return err
	}

	if err := setDuration(&cfg.DispatchDelay, "DISPATCH_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&cfg.RetryBaseDelay, "RETRY_BASE_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&cfg.ProbeTimeout, "PROBE_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PushTimeout, "PUSH_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.WeatherTimeout, "WEATHER_TIMEOUT"); err != nil {
		return err
	}

	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks required settings and range sanity. It runs before any
// network activity; a failure aborts the run.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &ConfigurationError{Field: "THINGER_TOKEN", Reason: "is required"}
	}
	if c.WeatherAPIKey == "" {
		return &ConfigurationError{Field: "WEATHER_API_KEY", Reason: "is required"}
	}
	if c.Server == "" {
		return &ConfigurationError{Field: "THINGER_SERVER", Reason: "is required"}
	}
	if c.Username == "" {
		return &ConfigurationError{Field: "THINGER_USERNAME", Reason: "is required"}
	}
	if c.DeviceEnd < c.DeviceStart {
		return &ConfigurationError{Field: "DEVICE_END", Reason: "must not be below DEVICE_START"}
	}
	if c.ProbeConcurrency < 1 {
		return &ConfigurationError{Field: "PROBE_CONCURRENCY", Reason: "must be at least 1"}
	}
	if c.BatchSize < 1 {
		return &ConfigurationError{Field: "BATCH_SIZE", Reason: "must be at least 1"}
	}
	if c.BatchConcurrency < 1 {
		return &ConfigurationError{Field: "BATCH_CONCURRENCY", Reason: "must be at least 1"}
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 1 {
		return &ConfigurationError{Field: "SUCCESS_THRESHOLD", Reason: "must be within [0, 1]"}
	}
	return nil
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
