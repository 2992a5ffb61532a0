package provenance

import "context"

// Raw is one lineage event as emitted by the data-flow engine. Events are
// produced upstream and treated as immutable here.
type Raw struct {
	EventID             int64             `json:"event_id"`
	EventType           string            `json:"event_type,omitempty"`
	EventTimeMillis     int64             `json:"event_time_millis"`
	EntryDateMillis     int64             `json:"entry_date_millis"`
	LineageStartMillis  int64             `json:"lineage_start_millis"`
	FileSize            int64             `json:"file_size"`
	PreviousFileSize    *int64            `json:"previous_file_size,omitempty"`
	EventDurationMillis *int64            `json:"event_duration_millis,omitempty"`
	ComponentID         string            `json:"component_id,omitempty"`
	ComponentType       string            `json:"component_type,omitempty"`
	SourceSystemID      string            `json:"source_system_id,omitempty"`
	FlowFileID          string            `json:"flow_file_id,omitempty"`
	ParentIDs           []string          `json:"parent_ids,omitempty"`
	ChildIDs            []string          `json:"child_ids,omitempty"`
	Details             string            `json:"details,omitempty"`
	Relationship        string            `json:"relationship,omitempty"`
	SourceQueueID       string            `json:"source_queue_id,omitempty"`
	PreviousAttributes  map[string]string `json:"previous_attributes,omitempty"`
	UpdatedAttributes   map[string]string `json:"updated_attributes,omitempty"`
}

// Attribute returns the named flow-file attribute, preferring the updated
// mapping over the previous one, matching the engine's lookup order.
func (r *Raw) Attribute(name string) (string, bool) {
	if v, ok := r.UpdatedAttributes[name]; ok {
		return v, true
	}
	if v, ok := r.PreviousAttributes[name]; ok {
		return v, true
	}
	return "", false
}

// Directory resolves opaque component identifiers against the engine's
// component catalog. Unresolvable identifiers yield empty strings, never
// errors; a missing display name only means the field is omitted
// downstream.
type Directory interface {
	// ComponentName returns the display name for a component or process
	// group id, or "" when unknown.
	ComponentName(id string) string
	// ProcessGroupID returns the id of the process group owning the given
	// component, or "" when unknown.
	ProcessGroupID(componentID, componentType string) string
}

// MapDirectory is a static Directory backed by in-memory maps. The replay
// source and tests use it; production deployments supply a Directory
// backed by the engine's component catalog.
type MapDirectory struct {
	// Names maps component or process group ids to display names.
	Names map[string]string `json:"names,omitempty"`
	// Groups maps component ids to their owning process group id.
	Groups map[string]string `json:"groups,omitempty"`
}

// ComponentName implements Directory.
func (d *MapDirectory) ComponentName(id string) string {
	if d == nil || id == "" {
		return ""
	}
	return d.Names[id]
}

// ProcessGroupID implements Directory.
func (d *MapDirectory) ProcessGroupID(componentID, _ string) string {
	if d == nil || componentID == "" {
		return ""
	}
	return d.Groups[componentID]
}

// Batch couples a slice of raw events with the directory snapshot that was
// current when they were read.
type Batch struct {
	Directory Directory
	Events    []Raw
}

// Source yields batches of raw lineage events. Read-position bookkeeping
// (including persistence across restarts) is owned by the implementation;
// the pipeline never assumes in-memory continuity between runs.
type Source interface {
	// NextBatch returns up to limit events past the source's current read
	// position, advancing it. A nil batch or an empty Events slice means
	// nothing new to report.
	NextBatch(ctx context.Context, limit int) (*Batch, error)
}
