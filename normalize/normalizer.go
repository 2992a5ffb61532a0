// Package normalize converts raw lineage events into the flat normalized
// records consumed by the classification and delivery stages.
package normalize

import (
	"time"

	"github.com/c360/provreport/pkg/timestamp"
	"github.com/c360/provreport/provenance"
)

// Normalizer derives one Normalized record per Raw event. Apart from the
// injected clock used for the ingestion timestamp, normalization is a
// pure function of the event and the directory snapshot.
type Normalizer struct {
	uris *URIBuilder
	now  func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock defaults to time.Now.
func NewNormalizer(uris *URIBuilder, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{uris: uris, now: now}
}

// Normalize builds the normalized record for one raw event. Status is left
// unset; the classifier assigns it exactly once before the record reaches
// any sink. Optional fields are included only when the source value is
// present, so absent data is omitted rather than null-padded.
func (n *Normalizer) Normalize(raw *provenance.Raw, dir provenance.Directory) *provenance.Normalized {
	out := &provenance.Normalized{
		IngestTime:         timestamp.FormatTimeISOMillis(n.now()),
		EventID:            raw.EventID,
		EventTimeMillis:    raw.EventTimeMillis,
		EventTimeISO:       timestamp.FormatISOMillis(raw.EventTimeMillis),
		EntryDateMillis:    raw.EntryDateMillis,
		LineageStartMillis: raw.LineageStartMillis,
		FileSize:           raw.FileSize,
		EventType:          raw.EventType,
		ComponentType:      raw.ComponentType,
		Details:            raw.Details,
		Relationship:       raw.Relationship,
		SourceQueueID:      raw.SourceQueueID,
		SourceSystemID:     raw.SourceSystemID,
		FlowFileID:         raw.FlowFileID,
	}

	processGroupID := dir.ProcessGroupID(raw.ComponentID, raw.ComponentType)
	out.ComponentName = dir.ComponentName(raw.ComponentID)
	out.ProcessGroupID = processGroupID
	out.ProcessGroupName = dir.ComponentName(processGroupID)

	if raw.ComponentID != "" {
		out.ComponentID = raw.ComponentID
		out.ComponentURL = n.uris.ComponentURL(processGroupID, raw.ComponentID)
	}

	if raw.PreviousFileSize != nil && *raw.PreviousFileSize >= 0 {
		size := *raw.PreviousFileSize
		out.PreviousFileSize = &size
	}

	if raw.EventDurationMillis != nil && *raw.EventDurationMillis >= 0 {
		millis := *raw.EventDurationMillis
		seconds := millis / 1000
		out.EventDurationMillis = &millis
		out.EventDurationSeconds = &seconds
	}

	if len(raw.ParentIDs) > 0 {
		out.ParentIDs = append([]string(nil), raw.ParentIDs...)
	}
	if len(raw.ChildIDs) > 0 {
		out.ChildIDs = append([]string(nil), raw.ChildIDs...)
	}
	if len(raw.PreviousAttributes) > 0 {
		out.PreviousAttributes = copyAttributes(raw.PreviousAttributes)
	}
	if len(raw.UpdatedAttributes) > 0 {
		out.UpdatedAttributes = copyAttributes(raw.UpdatedAttributes)
	}

	uris := n.uris.ContentURIs(raw.EventID)
	out.DownloadInputURI = uris.DownloadInput
	out.DownloadOutputURI = uris.DownloadOutput
	out.ViewInputURI = uris.ViewInput
	out.ViewOutputURI = uris.ViewOutput

	return out
}

// copyAttributes detaches the record's attribute maps from the raw event
// so the normalized record stays immutable.
func copyAttributes(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
