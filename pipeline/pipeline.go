package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/provreport/classify"
	"github.com/c360/provreport/config"
	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/metric"
	"github.com/c360/provreport/normalize"
	"github.com/c360/provreport/provenance"
	"github.com/c360/provreport/sink"
)

// Run results recorded against the pipeline run counter.
const (
	ResultOK       = "ok"
	ResultEmpty    = "empty"
	ResultSkipped  = "skipped"
	ResultDegraded = "degraded"
	ResultError    = "error"
)

// Params collects everything a Pipeline needs. Source, Normalizer and
// Classifier are required; Sinks may be empty, in which case runs still
// consume and classify events (useful for warming the read position).
type Params struct {
	Source     provenance.Source
	Normalizer *normalize.Normalizer
	Classifier *classify.Classifier
	Sinks      []sink.Sink
	BatchSize  int
	Clustering config.ClusteringConfig
	Logger     *slog.Logger
	Metrics    *metric.Metrics
}

// Pipeline drives one normalize-classify-deliver cycle per Run call.
// It holds no event state between runs; read-position bookkeeping lives
// in the Source.
type Pipeline struct {
	source     provenance.Source
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	sinks      []sink.Sink
	batchSize  int
	clustering config.ClusteringConfig
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// New validates params and builds a Pipeline.
func New(p Params) (*Pipeline, error) {
	if p.Source == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("source is required"), "Pipeline", "New", "validate params")
	}
	if p.Normalizer == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("normalizer is required"), "Pipeline", "New", "validate params")
	}
	if p.Classifier == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("classifier is required"), "Pipeline", "New", "validate params")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 1000
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Pipeline{
		source:     p.Source,
		normalizer: p.Normalizer,
		classifier: p.Classifier,
		sinks:      p.Sinks,
		batchSize:  p.BatchSize,
		clustering: p.Clustering,
		logger:     p.Logger.With("component", "pipeline"),
		metrics:    p.Metrics,
	}, nil
}

// Run executes one reporting cycle. Sink failures are logged and
// counted but never abort the run or surface as an error; only a
// failure to read from the source does. Run recovers panics so a bad
// cycle cannot take the host process down.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "panic", r)
			p.metrics.RecordRun(ResultError, time.Since(start))
			err = errors.Wrap(fmt.Errorf("panic: %v", r), "Pipeline", "Run", "execute cycle")
		}
	}()

	if p.clustering.Enabled && p.clustering.NodeID == "" {
		log.Debug("clustering enabled but node has no identifier yet, skipping run")
		p.metrics.RecordRun(ResultSkipped, time.Since(start))
		return nil
	}

	batch, err := p.source.NextBatch(ctx, p.batchSize)
	if err != nil {
		p.metrics.RecordRun(ResultError, time.Since(start))
		return errors.WrapTransient(err, "Pipeline", "Run", "read batch")
	}
	if batch == nil || len(batch.Events) == 0 {
		log.Debug("no new events")
		p.metrics.RecordRun(ResultEmpty, time.Since(start))
		return nil
	}
	p.metrics.RecordBatch(len(batch.Events))

	events := make([]*provenance.Normalized, 0, len(batch.Events))
	for i := range batch.Events {
		raw := &batch.Events[i]
		n := p.normalizer.Normalize(raw, batch.Directory)
		p.classifier.Classify(raw, n)
		p.metrics.RecordClassified(string(n.Status))
		events = append(events, n)
	}

	failed := 0
	for _, s := range p.sinks {
		if derr := s.Deliver(ctx, events); derr != nil {
			failed++
			log.Error("sink delivery failed", "sink", s.Name(), "error", derr)
			p.metrics.RecordDelivery(s.Name(), ResultError)
			continue
		}
		p.metrics.RecordDelivery(s.Name(), ResultOK)
	}

	result := ResultOK
	if failed > 0 {
		result = ResultDegraded
	}
	log.Info("run complete",
		"events", len(batch.Events),
		"sinks", len(p.sinks),
		"failed_sinks", failed,
		"elapsed", time.Since(start))
	p.metrics.RecordRun(result, time.Since(start))
	return nil
}

// RunEvery runs one cycle immediately, then again on every tick until
// the context is cancelled. Run errors are logged; the loop keeps
// going.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	if err := p.Run(ctx); err != nil {
		p.logger.Error("run failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				p.logger.Error("run failed", "error", err)
			}
		}
	}
}
