// Package config handles pipeline configuration and environment loading.
package config

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"fec-lake/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the directories, remote store and job list of the pipeline.
type Config struct {
	RawDataDir  string `yaml:"raw_data_dir"` // local archive cache, mirrors remote keys
	ParquetDir  string `yaml:"parquet_dir"`  // artifact output directory
	WorkDir     string `yaml:"work_dir"`     // parent of per-job scratch dirs (default os.TempDir)
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`     // optional S3-compatible endpoint, path-style
	SchemasFile string `yaml:"schemas_file"` // optional replacement for the built-in schema table
	FailFast    bool   `yaml:"fail_fast"`
	Verify      bool   `yaml:"verify"`   // re-read every artifact after writing
	Schedule    string `yaml:"schedule"` // cron expression used by "schedule"

	Jobs []domain.Job `yaml:"jobs"`

	// Credentials are only read from the environment. Without them the
	// bucket is read anonymously.
	S3KeyID  string `yaml:"-"`
	S3Secret string `yaml:"-"`

	LogLevel  string `yaml:"-"` // debug, info, warn, error (default "info")
	LogFormat string `yaml:"-"` // text or json (default "text")

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasCredentials returns true if both S3 key fields are set.
func (c *Config) HasCredentials() bool {
	return c.S3KeyID != "" && c.S3Secret != ""
}

// JobsFor returns the configured jobs whose category is in categories, in
// configured order. No categories selects every job.
func (c *Config) JobsFor(categories ...string) []domain.Job {
	if len(categories) == 0 {
		return slices.Clone(c.Jobs)
	}
	var out []domain.Job
	for _, j := range c.Jobs {
		if slices.Contains(categories, j.Category) {
			out = append(out, j)
		}
	}
	return out
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Parse(nil)
}

// Load reads a YAML pipeline file over the built-in configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the built-in configuration, fills defaults and
// validates the result. A key absent from data keeps its built-in value; a
// jobs list in data replaces the built-in list.
func Parse(data []byte) (*Config, error) {
	cfg, err := base(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds the configuration from the file named by FECETL_CONFIG
// (or the built-in configuration) and then applies environment overrides.
func LoadFromEnv() (*Config, error) {
	return LoadFileWithEnv(os.Getenv("FECETL_CONFIG"))
}

// LoadFileWithEnv is LoadFromEnv with an explicit pipeline file. An empty
// path uses the built-in configuration.
func LoadFileWithEnv(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		data = b
	}

	cfg, err := base(data)
	if err != nil {
		return nil, err
	}

	overrideString(&cfg.RawDataDir, "RAW_DATA_DIR")
	overrideString(&cfg.ParquetDir, "PARQUET_DIR")
	overrideString(&cfg.WorkDir, "WORK_DIR")
	overrideString(&cfg.Bucket, "S3_BUCKET")
	overrideString(&cfg.Region, "S3_REGION")
	overrideString(&cfg.Endpoint, "S3_ENDPOINT")
	overrideString(&cfg.SchemasFile, "SCHEMAS_FILE")
	overrideString(&cfg.Schedule, "SCHEDULE")
	cfg.FailFast = parseBoolEnvDefault("FAIL_FAST", cfg.FailFast)
	cfg.Verify = parseBoolEnvDefault("VERIFY_ARTIFACTS", cfg.Verify)
	cfg.S3KeyID = os.Getenv("S3_KEY_ID")
	cfg.S3Secret = os.Getenv("S3_SECRET")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")

	if (cfg.S3KeyID == "") != (cfg.S3Secret == "") {
		cfg.Warnings = append(cfg.Warnings, "only one of S3_KEY_ID and S3_SECRET is set; reading the bucket anonymously")
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// base decodes the built-in configuration and overlays data, if any.
func base(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decode(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("built-in config: %w", err)
	}
	if len(data) > 0 {
		if err := decode(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

func (c *Config) validate() error {
	if c.RawDataDir == "" {
		return fmt.Errorf("raw_data_dir is required")
	}
	if c.ParquetDir == "" {
		return fmt.Errorf("parquet_dir is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (want text or json)", c.LogFormat)
	}

	seen := make(map[string]int, len(c.Jobs))
	for i, j := range c.Jobs {
		if err := j.Validate(); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if prev, dup := seen[j.Name()]; dup {
			return fmt.Errorf("jobs[%d]: %s duplicates jobs[%d]; both would write %s", i, j.Name(), prev, j.ArtifactFile())
		}
		seen[j.Name()] = i
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
