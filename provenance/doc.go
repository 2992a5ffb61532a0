// Package provenance defines the data model for lineage/audit events
// flowing through the reporting pipeline.
//
// A Raw event is read once from the upstream data-flow engine and never
// mutated. The pipeline derives a single Normalized record from each Raw
// event; the record is immutable after classification and is discarded
// once every sink has seen the batch. The only cross-invocation state is
// the source's read position, which the Source implementation owns.
//
// The Directory collaborator resolves opaque component identifiers to
// display names and owning process groups. It is consumed, not
// implemented, by the pipeline; MapDirectory is a static implementation
// for replay sources and tests.
package provenance
