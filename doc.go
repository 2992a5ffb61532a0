// Package provreport turns a data-flow engine's lineage event stream
// into operational reports.
//
// The pipeline has four stages:
//
//   - Source: read batches of raw lineage events, resuming from a
//     persisted position across restarts (source/file)
//   - Normalize: resolve component and process group names, build
//     content download/view links, stamp ingest time (normalize)
//   - Classify: mark each event Info or Error from its event type,
//     details text, HTTP status attribute and script error markers
//     (classify)
//   - Deliver: hand the classified batch to every enabled sink
//     independently (sink/elastic, sink/email, sink/stream)
//
// Sinks filter for themselves: the index sink forwards allowlisted
// types plus every error, the email sink alerts on errors only
// (optionally grouped by similarity), and the stream sink publishes
// everything onto a JetStream subject per status. A failure in one
// record or one sink never stops the rest of the batch.
//
// The provreport binary under cmd/provreport wires these stages
// together from a JSON or YAML configuration file and runs them on a
// poll interval.
package provreport
