// Package config loads and validates the reporting pipeline configuration
// from JSON or YAML files with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/provreport/classify"
	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/sink/elastic"
	"github.com/c360/provreport/sink/email"
	"github.com/c360/provreport/sink/stream"
)

// Start position policies for the event source
const (
	StartBeginning = "beginning"
	StartEnd       = "end"
)

// Config represents the complete application configuration
type Config struct {
	// BaseURL is the instance UI address used for link construction. It
	// must end with the /nifi path segment.
	BaseURL string `json:"base_url" yaml:"base_url"`

	Source     SourceConfig     `json:"source"     yaml:"source"`
	Classify   ClassifyConfig   `json:"classify"   yaml:"classify"`
	Sinks      SinksConfig      `json:"sinks"      yaml:"sinks"`
	Clustering ClusteringConfig `json:"clustering" yaml:"clustering"`
	Metrics    MetricsConfig    `json:"metrics"    yaml:"metrics"`
	Logging    LoggingConfig    `json:"logging"    yaml:"logging"`
}

// SourceConfig defines where raw events are read from
type SourceConfig struct {
	// Path to the JSON-lines event file replayed by the file source.
	Path string `json:"path" yaml:"path"`

	// StartPosition applies when no read position has been persisted yet.
	StartPosition string `json:"start_position" yaml:"start_position"`

	// BatchSize bounds how many events one run pulls.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// PollInterval is the delay between scheduled runs.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`

	// PositionFile persists the read position across restarts.
	PositionFile string `json:"position_file" yaml:"position_file"`

	// DirectoryPath points at an optional JSON file mapping component ids
	// to display names and owning process groups.
	DirectoryPath string `json:"directory_path" yaml:"directory_path"`
}

// ClassifyConfig tunes the error classification rules
type ClassifyConfig struct {
	// DetailsAsError lists details strings treated as errors, matched
	// case-insensitively.
	DetailsAsError []string `json:"details_as_error" yaml:"details_as_error"`

	CheckHTTPErrors   *bool `json:"check_http_errors"   yaml:"check_http_errors"`
	CheckScriptErrors *bool `json:"check_script_errors" yaml:"check_script_errors"`
}

// SinksConfig enables and configures the delivery sinks
type SinksConfig struct {
	Elastic ElasticSinkConfig `json:"elastic" yaml:"elastic"`
	Email   EmailSinkConfig   `json:"email"   yaml:"email"`
	Stream  StreamSinkConfig  `json:"stream"  yaml:"stream"`
}

// ElasticSinkConfig wraps the index sink configuration with an enable flag
type ElasticSinkConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	elastic.Config `yaml:",inline"`
}

// EmailSinkConfig wraps the alert sink configuration with an enable flag
type EmailSinkConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	email.Config `yaml:",inline"`
}

// StreamSinkConfig wraps the stream sink configuration with an enable flag
type StreamSinkConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	stream.Config `yaml:",inline"`
}

// ClusteringConfig controls multi-node behavior. When enabled, runs are
// skipped until this node has been assigned an identifier.
type ClusteringConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	NodeID  string `json:"node_id" yaml:"node_id"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port"    yaml:"port"`
	Path    string `json:"path"    yaml:"path"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level"  yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when no file overrides it
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://localhost:443/nifi",
		Source: SourceConfig{
			StartPosition: StartBeginning,
			BatchSize:     1000,
			PollInterval:  Duration(time.Minute),
		},
		Classify: ClassifyConfig{
			DetailsAsError: classify.DefaultDetailsAsError,
		},
		Sinks: SinksConfig{
			Elastic: ElasticSinkConfig{Enabled: true, Config: elastic.DefaultConfig()},
			Email:   EmailSinkConfig{Enabled: false, Config: email.DefaultConfig()},
			Stream:  StreamSinkConfig{Enabled: false, Config: stream.DefaultConfig()},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ToClassifyConfig resolves the optional flags into the classifier's
// configuration, defaulting both checks to on. A nil details list means
// unset and keeps the classifier default; an explicitly empty list
// disables the details-as-error rule.
func (c *ClassifyConfig) ToClassifyConfig() classify.Config {
	cfg := classify.DefaultConfig()
	if c.DetailsAsError != nil {
		cfg.DetailsAsError = c.DetailsAsError
	}
	if c.CheckHTTPErrors != nil {
		cfg.CheckHTTPErrors = *c.CheckHTTPErrors
	}
	if c.CheckScriptErrors != nil {
		cfg.CheckScriptErrors = *c.CheckScriptErrors
	}
	return cfg
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "base_url is required")
	}
	if !strings.HasSuffix(strings.TrimSuffix(c.BaseURL, "/"), "/nifi") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"base_url must end with the /nifi path segment")
	}

	switch c.Source.StartPosition {
	case StartBeginning, StartEnd:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("start_position must be %q or %q", StartBeginning, StartEnd))
	}

	if c.Source.BatchSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"batch_size must be positive")
	}
	if c.Source.PollInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"poll_interval must be positive")
	}

	if c.Sinks.Elastic.Enabled {
		if err := c.Sinks.Elastic.Config.Validate(); err != nil {
			return fmt.Errorf("sinks.elastic: %w", err)
		}
	}
	if c.Sinks.Email.Enabled {
		if err := c.Sinks.Email.Config.Validate(); err != nil {
			return fmt.Errorf("sinks.email: %w", err)
		}
	}
	if c.Sinks.Stream.Enabled {
		if err := c.Sinks.Stream.Config.Validate(); err != nil {
			return fmt.Errorf("sinks.stream: %w", err)
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"metrics.port must be between 1 and 65535")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"logging.format must be json or text")
	}

	return nil
}

// Load reads configuration from path, layering it over the defaults and
// applying environment overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "Config", "Load", "parse YAML config")
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapInvalid(err, "Config", "Load", "parse JSON config")
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies PROVREPORT_* environment variables on top of
// the file configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROVREPORT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PROVREPORT_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("PROVREPORT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.BatchSize = n
		}
	}
	if v := os.Getenv("PROVREPORT_DETAILS_AS_ERROR"); v != "" {
		cfg.Classify.DetailsAsError = splitAndTrim(v)
	}
	if v := os.Getenv("PROVREPORT_ELASTICSEARCH_URL"); v != "" {
		cfg.Sinks.Elastic.URL = v
	}
	if v := os.Getenv("PROVREPORT_ELASTICSEARCH_INDEX"); v != "" {
		cfg.Sinks.Elastic.Index = v
	}
	if v := os.Getenv("PROVREPORT_NATS_URL"); v != "" {
		cfg.Sinks.Stream.URL = v
	}
	if v := os.Getenv("PROVREPORT_SMTP_HOST"); v != "" {
		cfg.Sinks.Email.Host = v
	}
	if v := os.Getenv("PROVREPORT_SMTP_PASSWORD"); v != "" {
		cfg.Sinks.Email.Password = v
	}
	if v := os.Getenv("PROVREPORT_NODE_ID"); v != "" {
		cfg.Clustering.NodeID = v
	}
	if v := os.Getenv("PROVREPORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
