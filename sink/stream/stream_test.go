package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/provreport/provenance"
)

type published struct {
	subject string
	data    []byte
}

// fakePublisher captures publishes instead of talking to a server.
type fakePublisher struct {
	messages []published
	err      error
	failures int
}

func (f *fakePublisher) PublishToStream(_ context.Context, subject string, data []byte) error {
	if f.err != nil && f.failures > 0 {
		f.failures--
		return f.err
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return nil
}

func newTestSink(t *testing.T) (*Sink, *fakePublisher) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink, err := NewSink(DefaultConfig(), nil, logger, nil)
	require.NoError(t, err)

	fake := &fakePublisher{}
	sink.client = fake
	return sink, fake
}

func classifiedEvent(id int64, status provenance.Status) *provenance.Normalized {
	return &provenance.Normalized{
		EventID:          id,
		EventType:        "SEND",
		ComponentID:      "comp-1",
		ComponentType:    "PutSFTP",
		ComponentName:    "Upload",
		ProcessGroupName: "Ingest",
		Status:           status,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.URL = "" }, "url is required"},
		{"missing stream", func(c *Config) { c.StreamName = "" }, "stream_name is required"},
		{"missing prefix", func(c *Config) { c.SubjectPrefix = "" }, "subject_prefix is required"},
		{"trailing dot", func(c *Config) { c.SubjectPrefix = "provenance." }, "must not end with a dot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDeliver_StatusScopedSubjects(t *testing.T) {
	sink, fake := newTestSink(t)

	events := []*provenance.Normalized{
		classifiedEvent(1, provenance.StatusInfo),
		classifiedEvent(2, provenance.StatusError),
	}

	require.NoError(t, sink.Deliver(context.Background(), events))
	require.Len(t, fake.messages, 2)
	assert.Equal(t, "provenance.events.info", fake.messages[0].subject)
	assert.Equal(t, "provenance.events.error", fake.messages[1].subject)
}

func TestDeliver_PayloadRoundTrips(t *testing.T) {
	sink, fake := newTestSink(t)

	event := classifiedEvent(7, provenance.StatusError)
	event.Details = "disk full"

	require.NoError(t, sink.Deliver(context.Background(), []*provenance.Normalized{event}))
	require.Len(t, fake.messages, 1)

	var decoded provenance.Normalized
	require.NoError(t, json.Unmarshal(fake.messages[0].data, &decoded))
	assert.Equal(t, int64(7), decoded.EventID)
	assert.Equal(t, provenance.StatusError, decoded.Status)
	assert.Equal(t, "disk full", decoded.Details)
}

func TestDeliver_SkipsEventsWithoutIdentity(t *testing.T) {
	sink, fake := newTestSink(t)

	event := classifiedEvent(1, provenance.StatusError)
	event.ComponentName = ""

	require.NoError(t, sink.Deliver(context.Background(), []*provenance.Normalized{event}))
	assert.Empty(t, fake.messages)
}

func TestDeliver_PublishFailureDoesNotAbortBatch(t *testing.T) {
	sink, fake := newTestSink(t)
	fake.err = fmt.Errorf("nats: timeout")
	fake.failures = 1

	events := []*provenance.Normalized{
		classifiedEvent(1, provenance.StatusInfo),
		classifiedEvent(2, provenance.StatusInfo),
	}

	require.NoError(t, sink.Deliver(context.Background(), events))
	require.Len(t, fake.messages, 1)
}

func TestSink_Name(t *testing.T) {
	sink, _ := newTestSink(t)
	assert.Equal(t, "stream", sink.Name())
}
