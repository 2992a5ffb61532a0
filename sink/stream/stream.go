// Package stream provides a sink that republishes classified events onto
// a JetStream stream, one subject per status, for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/metric"
	"github.com/c360/provreport/natsclient"
	"github.com/c360/provreport/provenance"
)

// Config holds configuration for the stream sink
type Config struct {
	URL           string `json:"url"            yaml:"url"`
	StreamName    string `json:"stream_name"    yaml:"stream_name"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	if c.StreamName == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "stream_name is required")
	}
	if c.SubjectPrefix == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject_prefix is required")
	}
	if strings.HasSuffix(c.SubjectPrefix, ".") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subject_prefix must not end with a dot")
	}
	return nil
}

// DefaultConfig returns default configuration for the stream sink
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		StreamName:    "PROVENANCE",
		SubjectPrefix: "provenance.events",
	}
}

// publisher is the slice of the NATS client the sink needs.
type publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Sink republishes every classified event to {prefix}.{status} subjects.
// Unlike the index sink there is no allowlist: downstream consumers
// subscribe to the status level they care about.
type Sink struct {
	cfg     Config
	client  publisher
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewSink creates a stream sink publishing through the given client
func NewSink(cfg Config, client *natsclient.Client, logger *slog.Logger, metrics *metric.Metrics) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Sink", "NewSink", "config validation")
	}

	return &Sink{
		cfg:     cfg,
		client:  client,
		logger:  logger.With("sink", "stream"),
		metrics: metrics,
	}, nil
}

// EnsureStream creates the backing stream if missing. Called once at
// pipeline startup, after the client has connected.
func (s *Sink) EnsureStream(ctx context.Context, client *natsclient.Client) error {
	_, err := client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     s.cfg.StreamName,
		Subjects: []string{s.cfg.SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return errors.WrapTransient(err, "Sink", "EnsureStream", "create stream")
	}
	return nil
}

// Name identifies the sink in logs and metrics
func (s *Sink) Name() string {
	return "stream"
}

// Deliver publishes each event in the batch. Per-record publish failures
// are logged and do not abort the remaining batch.
func (s *Sink) Deliver(ctx context.Context, events []*provenance.Normalized) error {
	for _, event := range events {
		if !event.HasIdentity() {
			s.logger.Warn("event has no process group, processor name or component type, ignoring",
				"event_id", event.EventID)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeSkipped)
			continue
		}

		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("failed to serialize event",
				"event_id", event.EventID, "error", err)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeFailed)
			continue
		}

		subject := s.subjectFor(event)
		if err := s.client.PublishToStream(ctx, subject, payload); err != nil {
			s.logger.Error("failed to publish event",
				"event_id", event.EventID, "subject", subject, "error", err)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeFailed)
			continue
		}

		s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeForwarded)
	}

	s.metrics.RecordDelivery(s.Name(), "ok")
	return nil
}

// subjectFor maps an event to its status-scoped subject.
func (s *Sink) subjectFor(event *provenance.Normalized) string {
	return fmt.Sprintf("%s.%s", s.cfg.SubjectPrefix, strings.ToLower(string(event.Status)))
}
