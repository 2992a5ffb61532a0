// Package elastic provides the index sink, which forwards individual
// classified events to an Elasticsearch index.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/metric"
	"github.com/c360/provreport/provenance"
)

// DefaultAllowlist lists the component types whose events are always
// forwarded regardless of status. Other types only forward Error events.
var DefaultAllowlist = []string{
	"DeleteSFTP", "ExecuteSQLRecord", "ExtendedValidateCsv", "FetchFTP",
	"FetchSFTP", "FetchSmb", "GenerateFlowFile", "GetFTP", "GetSFTP",
	"GetSmbFile", "InvokeHTTP", "ListenFTP", "ListFTP", "ListSFTP",
	"ListSmb", "PutFTP", "PutSFTP", "PutSmbFile",
}

// Config holds configuration for the index sink
type Config struct {
	URL       string   `json:"url"       yaml:"url"`
	Index     string   `json:"index"     yaml:"index"`
	Allowlist []string `json:"allowlist" yaml:"allowlist"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if c.Index == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "index is required")
	}
	return nil
}

// DefaultConfig returns default configuration for the index sink
func DefaultConfig() Config {
	return Config{
		URL:       "http://localhost:9200",
		Index:     "nifi",
		Allowlist: DefaultAllowlist,
	}
}

// Sink writes classified events to an Elasticsearch index. Records pass
// the filter when their component type is in the allowlist or their
// status is Error; everything else is dropped silently. Documents are
// keyed by event id so redelivery upserts instead of duplicating.
type Sink struct {
	cfg       Config
	allowlist map[string]struct{}
	logger    *slog.Logger
	metrics   *metric.Metrics

	// Client is created lazily on first delivery and reused across runs.
	client   *elasticsearch.Client
	clientMu sync.Mutex
}

// NewSink creates an index sink from configuration
func NewSink(cfg Config, logger *slog.Logger, metrics *metric.Metrics) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Sink", "NewSink", "config validation")
	}

	allowlist := make(map[string]struct{}, len(cfg.Allowlist))
	for _, componentType := range cfg.Allowlist {
		allowlist[componentType] = struct{}{}
	}

	return &Sink{
		cfg:       cfg,
		allowlist: allowlist,
		logger:    logger.With("sink", "elastic"),
		metrics:   metrics,
	}, nil
}

// Name identifies the sink in logs and metrics
func (s *Sink) Name() string {
	return "elastic"
}

// Deliver indexes every forwardable event in the batch. Per-record
// failures are logged and do not abort the remaining batch; the returned
// error reports only sink-level failures such as an unreachable cluster.
func (s *Sink) Deliver(ctx context.Context, events []*provenance.Normalized) error {
	client, err := s.ensureClient()
	if err != nil {
		s.metrics.RecordDelivery(s.Name(), "error")
		return errors.WrapTransient(err, "Sink", "Deliver", "create elasticsearch client")
	}

	for _, event := range events {
		if !event.HasIdentity() {
			s.logger.Warn("event has no process group, processor name or component type, ignoring",
				"event_id", event.EventID)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeSkipped)
			continue
		}

		if !s.forwardable(event) {
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeDropped)
			continue
		}

		if err := s.indexEvent(ctx, client, event); err != nil {
			s.logger.Error("failed to index event",
				"event_id", event.EventID, "error", err)
			s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeFailed)
			continue
		}
	}

	s.metrics.RecordDelivery(s.Name(), "ok")
	return nil
}

// forwardable applies the allowlist-or-error predicate.
func (s *Sink) forwardable(event *provenance.Normalized) bool {
	if _, ok := s.allowlist[event.ComponentType]; ok {
		return true
	}
	return event.Status == provenance.StatusError
}

// indexEvent upserts one document keyed by event id.
func (s *Sink) indexEvent(ctx context.Context, client *elasticsearch.Client, event *provenance.Normalized) error {
	doc, degraded := s.buildDocument(event)

	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.ErrSerialization, "Sink", "indexEvent", err.Error())
	}

	req := esapi.IndexRequest{
		Index:      s.cfg.Index,
		DocumentID: strconv.FormatInt(event.EventID, 10),
		Body:       bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return errors.WrapTransient(err, "Sink", "indexEvent", "index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.WrapTransient(
			fmt.Errorf("elasticsearch returned %s", res.Status()),
			"Sink", "indexEvent", "index request rejected")
	}

	if degraded {
		s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeDegraded)
	} else {
		s.metrics.RecordSinkRecord(s.Name(), metric.OutcomeForwarded)
	}
	return nil
}

// document is the index schema for one forwarded event. The attribute
// mappings are serialized to JSON strings rather than nested objects.
type document struct {
	EventID            int64             `json:"event_id"`
	EventTimeMillis    int64             `json:"event_time_millis"`
	EventTimeISO       string            `json:"event_time_iso_utc"`
	EventType          string            `json:"event_type"`
	ComponentType      string            `json:"component_type"`
	ComponentURL       string            `json:"component_url"`
	ComponentName      string            `json:"component_name"`
	ProcessGroupName   string            `json:"process_group_name"`
	ProcessGroupID     string            `json:"process_group_id"`
	Status             provenance.Status `json:"status"`
	DownloadInputURI   string            `json:"download_input_content_uri"`
	DownloadOutputURI  string            `json:"download_output_content_uri"`
	ViewInputURI       string            `json:"view_input_content_uri"`
	ViewOutputURI      string            `json:"view_output_content_uri"`
	UpdatedAttributes  string            `json:"updated_attributes,omitempty"`
	PreviousAttributes string            `json:"previous_attributes,omitempty"`
	Details            string            `json:"details,omitempty"`
}

// buildDocument shapes one event for indexing. Attribute serialization
// failure is non-fatal: the affected field is omitted and the record is
// still forwarded, flagged as degraded.
func (s *Sink) buildDocument(event *provenance.Normalized) (document, bool) {
	doc := document{
		EventID:           event.EventID,
		EventTimeMillis:   event.EventTimeMillis,
		EventTimeISO:      event.EventTimeISO,
		EventType:         event.EventType,
		ComponentType:     event.ComponentType,
		ComponentURL:      event.ComponentURL,
		ComponentName:     event.ComponentName,
		ProcessGroupName:  event.ProcessGroupName,
		ProcessGroupID:    event.ProcessGroupID,
		Status:            event.Status,
		DownloadInputURI:  event.DownloadInputURI,
		DownloadOutputURI: event.DownloadOutputURI,
		ViewInputURI:      event.ViewInputURI,
		ViewOutputURI:     event.ViewOutputURI,
		Details:           event.Details,
	}

	degraded := false

	if updated, err := json.Marshal(event.UpdatedAttributes); err != nil {
		s.logger.Error("failed to serialize updated attributes, omitting them",
			"event_id", event.EventID, "error", err)
		degraded = true
	} else {
		doc.UpdatedAttributes = string(updated)
	}

	if previous, err := json.Marshal(event.PreviousAttributes); err != nil {
		s.logger.Error("failed to serialize previous attributes, omitting them",
			"event_id", event.EventID, "error", err)
		degraded = true
	} else {
		doc.PreviousAttributes = string(previous)
	}

	return doc, degraded
}

// ensureClient returns the cached client, constructing it on first use.
func (s *Sink) ensureClient() (*elasticsearch.Client, error) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{s.cfg.URL},
	})
	if err != nil {
		return nil, err
	}

	s.client = client
	return client, nil
}
