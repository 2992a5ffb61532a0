// Package timestamp provides Unix-millisecond timestamp handling for
// provenance records.
//
// Lineage events carry their timestamps as milliseconds since the Unix
// epoch (UTC). This package keeps int64 milliseconds as the canonical
// form and provides the ISO-8601 rendering used in indexed documents.
//
// Zero Value Semantics:
//   - A timestamp value of 0 means "not set" or "unknown"
//   - Functions handle zero values gracefully, returning appropriate defaults
package timestamp

import (
	"fmt"
	"time"
)

// ISOMillisLayout is the layout used for event_time_iso_utc and the
// ingestion timestamp: ISO-8601, UTC, fixed millisecond precision.
const ISOMillisLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// FormatISOMillis renders Unix milliseconds as an ISO-8601 UTC string
// with millisecond precision, e.g. "2023-04-01T09:30:00.125Z".
// Returns empty string if timestamp is 0.
func FormatISOMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(ISOMillisLayout)
}

// FormatTimeISOMillis renders a time.Time in the same ISO-8601 UTC
// millisecond form. Used for the ingestion timestamp stamped on every
// normalized event.
func FormatTimeISOMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ISOMillisLayout)
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}

// Validate checks if a timestamp is valid (non-negative and reasonable).
// Returns an error if the timestamp is negative or unreasonably large.
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	// Reject anything past year 3000.
	if ms > 32503680000000 {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}
