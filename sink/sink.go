// Package sink defines the delivery abstraction at the end of the
// pipeline. Every active sink receives the same classified batch and
// applies its own filtering rules; sinks never see each other's
// decisions. New sink types plug in without touching the pipeline.
package sink

import (
	"context"

	"github.com/c360/provreport/provenance"
)

// Sink delivers a batch of classified events to one destination.
//
// Implementations isolate per-record faults: a failure delivering one
// record is logged and must not abort the remaining batch. The returned
// error reports sink-level failures only (e.g. the destination is
// entirely unreachable); the pipeline logs it and continues with the
// other sinks.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Deliver hands the full classified batch to the sink.
	Deliver(ctx context.Context, events []*provenance.Normalized) error
}
