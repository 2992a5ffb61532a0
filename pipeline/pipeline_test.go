package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/provreport/classify"
	"github.com/c360/provreport/config"
	"github.com/c360/provreport/normalize"
	"github.com/c360/provreport/provenance"
	"github.com/c360/provreport/sink"
)

type fakeSource struct {
	batches []*provenance.Batch
	err     error
	calls   int
}

func (s *fakeSource) NextBatch(_ context.Context, _ int) (*provenance.Batch, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type fakeSink struct {
	name      string
	err       error
	delivered [][]*provenance.Normalized
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(_ context.Context, events []*provenance.Normalized) error {
	s.delivered = append(s.delivered, events)
	return s.err
}

func testNormalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	uris, err := normalize.NewURIBuilder("https://localhost:443/nifi")
	require.NoError(t, err)
	return normalize.NewNormalizer(uris, func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	})
}

func testClassifier() *classify.Classifier {
	return classify.NewClassifier(classify.DefaultConfig(), slog.Default())
}

func testBatch(ids ...int64) *provenance.Batch {
	dir := &provenance.MapDirectory{
		Names:  map[string]string{"proc-1": "FetchData", "pg-1": "Ingest"},
		Groups: map[string]string{"proc-1": "pg-1"},
	}
	b := &provenance.Batch{Directory: dir}
	for _, id := range ids {
		b.Events = append(b.Events, provenance.Raw{
			EventID:         id,
			EventType:       "RECEIVE",
			EventTimeMillis: 1709294400000,
			ComponentID:     "proc-1",
			ComponentType:   "FetchSFTP",
		})
	}
	return b
}

func newTestPipeline(t *testing.T, src provenance.Source, sinks ...sink.Sink) *Pipeline {
	t.Helper()
	p, err := New(Params{
		Source:     src,
		Normalizer: testNormalizer(t),
		Classifier: testClassifier(),
		Sinks:      sinks,
		Logger:     slog.Default(),
	})
	require.NoError(t, err)
	return p
}

func TestNewValidation(t *testing.T) {
	norm := testNormalizer(t)
	cls := testClassifier()

	tests := []struct {
		name   string
		params Params
		errMsg string
	}{
		{
			name:   "missing source",
			params: Params{Normalizer: norm, Classifier: cls},
			errMsg: "source is required",
		},
		{
			name:   "missing normalizer",
			params: Params{Source: &fakeSource{}, Classifier: cls},
			errMsg: "normalizer is required",
		},
		{
			name:   "missing classifier",
			params: Params{Source: &fakeSource{}, Normalizer: norm},
			errMsg: "classifier is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewDefaultsBatchSize(t *testing.T) {
	p := newTestPipeline(t, &fakeSource{})
	assert.Equal(t, 1000, p.batchSize)
}

func TestRunDeliversToAllSinks(t *testing.T) {
	src := &fakeSource{batches: []*provenance.Batch{testBatch(1, 2, 3)}}
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	p := newTestPipeline(t, src, a, b)

	require.NoError(t, p.Run(context.Background()))

	require.Len(t, a.delivered, 1)
	require.Len(t, b.delivered, 1)
	assert.Len(t, a.delivered[0], 3)

	// Both sinks see the same classified batch.
	assert.Equal(t, a.delivered[0], b.delivered[0])
	first := a.delivered[0][0]
	assert.Equal(t, int64(1), first.EventID)
	assert.Equal(t, "FetchData", first.ComponentName)
	assert.Equal(t, "Ingest", first.ProcessGroupName)
	assert.Equal(t, provenance.StatusInfo, first.Status)
}

func TestRunEmptyBatch(t *testing.T) {
	src := &fakeSource{}
	s := &fakeSink{name: "a"}
	p := newTestPipeline(t, src, s)

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, s.delivered)
}

func TestRunSourceError(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("disk gone")}
	s := &fakeSink{name: "a"}
	p := newTestPipeline(t, src, s)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Empty(t, s.delivered)
}

func TestRunSinkFailureIsolated(t *testing.T) {
	src := &fakeSource{batches: []*provenance.Batch{testBatch(1)}}
	failing := &fakeSink{name: "bad", err: fmt.Errorf("unreachable")}
	healthy := &fakeSink{name: "good"}
	p := newTestPipeline(t, src, failing, healthy)

	// A failing sink never surfaces as a run error and never blocks
	// the sinks after it.
	require.NoError(t, p.Run(context.Background()))
	require.Len(t, healthy.delivered, 1)
	assert.Len(t, healthy.delivered[0], 1)
}

func TestRunSkipsWithoutNodeID(t *testing.T) {
	src := &fakeSource{batches: []*provenance.Batch{testBatch(1)}}

	p, err := New(Params{
		Source:     src,
		Normalizer: testNormalizer(t),
		Classifier: testClassifier(),
		Clustering: config.ClusteringConfig{Enabled: true},
		Logger:     slog.Default(),
	})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Zero(t, src.calls, "source must not be read while the node is unassigned")
}

func TestRunProceedsWithNodeID(t *testing.T) {
	src := &fakeSource{batches: []*provenance.Batch{testBatch(1)}}
	s := &fakeSink{name: "a"}
	p := newTestPipeline(t, src, s)
	p.clustering = config.ClusteringConfig{Enabled: true, NodeID: "node-1"}

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, s.delivered, 1)
}

func TestRunRecoversPanic(t *testing.T) {
	src := &fakeSource{batches: []*provenance.Batch{testBatch(1)}}
	p := newTestPipeline(t, src, &panickySink{})

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

type panickySink struct{}

func (*panickySink) Name() string { return "boom" }

func (*panickySink) Deliver(context.Context, []*provenance.Normalized) error {
	panic("sink bug")
}

func TestRunEveryStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	p := newTestPipeline(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RunEvery(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not stop after cancel")
	}
	assert.GreaterOrEqual(t, src.calls, 2, "expected the initial run plus at least one tick")
}
