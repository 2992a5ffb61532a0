package provenance

// Status classifies a normalized event. Every normalized event carries
// exactly one of the two values.
type Status string

// Possible event statuses
const (
	StatusInfo  Status = "Info"
	StatusError Status = "Error"
)

// Normalized is the flat record derived once from a Raw event. Optional
// fields are omitted entirely when the source value is absent, keeping
// downstream payloads free of null placeholders. The record is immutable
// after classification.
//
// Invariants: Status is always set; ComponentURL is present iff
// ComponentID is present.
type Normalized struct {
	IngestTime           string            `json:"@timestamp"`
	EventID              int64             `json:"event_id"`
	EventTimeMillis      int64             `json:"event_time_millis"`
	EventTimeISO         string            `json:"event_time_iso_utc"`
	EntryDateMillis      int64             `json:"entry_date"`
	LineageStartMillis   int64             `json:"lineage_start_date"`
	FileSize             int64             `json:"file_size"`
	PreviousFileSize     *int64            `json:"previous_file_size,omitempty"`
	EventDurationMillis  *int64            `json:"event_duration_millis,omitempty"`
	EventDurationSeconds *int64            `json:"event_duration_seconds,omitempty"`
	EventType            string            `json:"event_type,omitempty"`
	ComponentID          string            `json:"component_id,omitempty"`
	ComponentType        string            `json:"component_type,omitempty"`
	ComponentName        string            `json:"component_name,omitempty"`
	ComponentURL         string            `json:"component_url,omitempty"`
	ProcessGroupID       string            `json:"process_group_id,omitempty"`
	ProcessGroupName     string            `json:"process_group_name,omitempty"`
	Status               Status            `json:"status"`
	Details              string            `json:"details,omitempty"`
	Relationship         string            `json:"relationship,omitempty"`
	SourceQueueID        string            `json:"source_queue_id,omitempty"`
	SourceSystemID       string            `json:"source_system_id,omitempty"`
	FlowFileID           string            `json:"flow_file_id,omitempty"`
	ParentIDs            []string          `json:"parent_ids,omitempty"`
	ChildIDs             []string          `json:"child_ids,omitempty"`
	PreviousAttributes   map[string]string `json:"previous_attributes,omitempty"`
	UpdatedAttributes    map[string]string `json:"updated_attributes,omitempty"`
	DownloadInputURI     string            `json:"download_input_content_uri"`
	DownloadOutputURI    string            `json:"download_output_content_uri"`
	ViewInputURI         string            `json:"view_input_content_uri"`
	ViewOutputURI        string            `json:"view_output_content_uri"`
}

// HasIdentity reports whether the record carries the identity fields
// required for forwarding to the index sink.
func (n *Normalized) HasIdentity() bool {
	return n.ProcessGroupName != "" && n.ComponentName != "" && n.ComponentType != ""
}

// GroupKey identifies a set of similar errors. Two events are similar iff
// their keys are equal; equality is exact string equality on all three
// fields. An Error event lacking details groups under the empty string.
type GroupKey struct {
	ComponentID string
	Details     string
	EventType   string
}

// Key returns the grouping key for the event.
func (n *Normalized) Key() GroupKey {
	return GroupKey{
		ComponentID: n.ComponentID,
		Details:     n.Details,
		EventType:   n.EventType,
	}
}
