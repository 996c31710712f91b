// Package config provides configuration loading and validation for the
// studio service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Blob backends.
const (
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendMemory   = "memory"
)

// Duration is a time.Duration that reads and writes JSON as a string such
// as "2s" or "5m".
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config represents the service configuration. Values come from the
// environment and may be overridden by a JSON file.
type Config struct {
	// Server
	Port          int    `json:"port,omitempty"`
	PublicBaseURL string `json:"public_base_url,omitempty"` // Base of /files/ URLs for non-S3 backends

	// Blob storage
	BlobBackend        string `json:"blob_backend,omitempty"` // s3, postgres, local or memory
	AWSRegion          string `json:"aws_region,omitempty"`
	AWSEndpoint        string `json:"aws_endpoint,omitempty"`
	AWSAccessKeyID     string `json:"aws_access_key_id,omitempty"`
	AWSSecretAccessKey string `json:"aws_secret_access_key,omitempty"`
	AWSBucket          string `json:"aws_bucket,omitempty"`
	AWSUsePathStyle    bool   `json:"aws_use_path_style,omitempty"`
	DatabaseURL        string `json:"database_url,omitempty"`
	LocalBlobDir       string `json:"local_blob_dir,omitempty"`

	// Providers
	FalKey       string `json:"fal_key,omitempty"`
	FalModel     string `json:"fal_model,omitempty"`
	FalBaseURL   string `json:"fal_base_url,omitempty"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	GeminiModel  string `json:"gemini_model,omitempty"`

	// Behavior
	CollectionWriteAttempts int      `json:"collection_write_attempts,omitempty"`
	JobPollInterval         Duration `json:"job_poll_interval,omitempty"`
	JobPollMaxAttempts      int      `json:"job_poll_max_attempts,omitempty"`
	JobPollTimeout          Duration `json:"job_poll_timeout,omitempty"`
	Verbose                 bool     `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		Port:                    3000,
		PublicBaseURL:           "http://localhost:3000",
		BlobBackend:             BackendS3,
		AWSRegion:               "sa-east-1",
		LocalBlobDir:            "data/blobs",
		FalModel:                "fal-ai/flux-realism",
		FalBaseURL:              "https://queue.fal.run",
		CollectionWriteAttempts: 5,
		JobPollInterval:         Duration{2 * time.Second},
		JobPollMaxAttempts:      150,
		JobPollTimeout:          Duration{5 * time.Minute},
	}
}

// FromEnv builds a Config from environment variables on top of Defaults.
func FromEnv() (*Config, error) {
	cfg := Defaults()

	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.BlobBackend, "BLOB_BACKEND")
	setString(&cfg.AWSRegion, "MY_AWS_REGION")
	setString(&cfg.AWSEndpoint, "MY_AWS_ENDPOINT")
	setString(&cfg.AWSAccessKeyID, "MY_AWS_ACCESS_KEY_ID")
	setString(&cfg.AWSSecretAccessKey, "MY_AWS_SECRET_ACCESS_KEY")
	setString(&cfg.AWSBucket, "MY_AWS_BUCKET_NAME")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.LocalBlobDir, "LOCAL_BLOB_DIR")
	setString(&cfg.FalKey, "FAL_KEY")
	setString(&cfg.FalModel, "FAL_MODEL")
	setString(&cfg.FalBaseURL, "FAL_BASE_URL")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Port, "PORT"},
		{&cfg.CollectionWriteAttempts, "COLLECTION_WRITE_ATTEMPTS"},
		{&cfg.JobPollMaxAttempts, "JOB_POLL_MAX_ATTEMPTS"},
	}
	for _, f := range ints {
		if err := setInt(f.dst, f.key); err != nil {
			return nil, err
		}
	}
	if err := setDuration(&cfg.JobPollInterval, "JOB_POLL_INTERVAL"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.JobPollTimeout, "JOB_POLL_TIMEOUT"); err != nil {
		return nil, err
	}
	if v := os.Getenv("MY_AWS_USE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MY_AWS_USE_PATH_STYLE: %v", err)
		}
		cfg.AWSUsePathStyle = b
	}

	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))
	return &cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	dst.Duration = d
	return nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. File values are merged over environment values this way.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct {
		dst *string
		def string
	}{
		{&result.PublicBaseURL, defaults.PublicBaseURL},
		{&result.BlobBackend, defaults.BlobBackend},
		{&result.AWSRegion, defaults.AWSRegion},
		{&result.AWSEndpoint, defaults.AWSEndpoint},
		{&result.AWSAccessKeyID, defaults.AWSAccessKeyID},
		{&result.AWSSecretAccessKey, defaults.AWSSecretAccessKey},
		{&result.AWSBucket, defaults.AWSBucket},
		{&result.DatabaseURL, defaults.DatabaseURL},
		{&result.LocalBlobDir, defaults.LocalBlobDir},
		{&result.FalKey, defaults.FalKey},
		{&result.FalModel, defaults.FalModel},
		{&result.FalBaseURL, defaults.FalBaseURL},
		{&result.GeminiAPIKey, defaults.GeminiAPIKey},
		{&result.GeminiModel, defaults.GeminiModel},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = s.def
		}
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.CollectionWriteAttempts == 0 {
		result.CollectionWriteAttempts = defaults.CollectionWriteAttempts
	}
	if result.JobPollMaxAttempts == 0 {
		result.JobPollMaxAttempts = defaults.JobPollMaxAttempts
	}
	if result.JobPollInterval.Duration == 0 {
		result.JobPollInterval = defaults.JobPollInterval
	}
	if result.JobPollTimeout.Duration == 0 {
		result.JobPollTimeout = defaults.JobPollTimeout
	}

	// Bools cannot tell unset from false, so either side enables them.
	result.AWSUsePathStyle = result.AWSUsePathStyle || defaults.AWSUsePathStyle
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// Validate checks that the configuration has valid values for the chosen
// blob backend. Provider keys are checked separately by RequireFal.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	if c.CollectionWriteAttempts < 1 {
		return fmt.Errorf("config error: 'collection_write_attempts' must be at least 1")
	}
	if c.JobPollInterval.Duration <= 0 {
		return fmt.Errorf("config error: 'job_poll_interval' must be positive")
	}
	if c.JobPollMaxAttempts < 0 || c.JobPollTimeout.Duration < 0 {
		return fmt.Errorf("config error: job poll limits must be non-negative")
	}

	switch c.BlobBackend {
	case BackendS3:
		if c.AWSBucket == "" {
			return fmt.Errorf("config error: MY_AWS_BUCKET_NAME is required for the s3 backend")
		}
		if c.AWSRegion == "" {
			return fmt.Errorf("config error: MY_AWS_REGION is required for the s3 backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: DATABASE_URL is required for the postgres backend")
		}
	case BackendLocal:
		if c.LocalBlobDir == "" {
			return fmt.Errorf("config error: LOCAL_BLOB_DIR is required for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config error: unknown blob backend %q (want s3, postgres, local or memory)", c.BlobBackend)
	}
	return nil
}

// RequireFal checks that image generation can be reached.
func (c *Config) RequireFal() error {
	if c.FalKey == "" {
		return fmt.Errorf("config error: FAL_KEY is required for image generation")
	}
	return nil
}
