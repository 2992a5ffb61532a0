// Package pipeline orchestrates one reporting cycle: read a batch of
// raw lineage events, normalize and classify them, then hand the
// classified batch to every active sink. Sinks fail independently; a
// run never crashes the host process.
package pipeline
