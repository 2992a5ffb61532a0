package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaw_Attribute(t *testing.T) {
	raw := Raw{
		PreviousAttributes: map[string]string{
			"filename": "old.csv",
			"owner":    "ops",
		},
		UpdatedAttributes: map[string]string{
			"filename": "new.csv",
		},
	}

	tests := []struct {
		name     string
		attr     string
		expected string
		found    bool
	}{
		{"updated wins over previous", "filename", "new.csv", true},
		{"falls back to previous", "owner", "ops", true},
		{"unknown attribute", "missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := raw.Attribute(tt.attr)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestMapDirectory(t *testing.T) {
	dir := &MapDirectory{
		Names: map[string]string{
			"proc-1":  "FetchData",
			"group-1": "Ingest Flows",
		},
		Groups: map[string]string{
			"proc-1": "group-1",
		},
	}

	assert.Equal(t, "FetchData", dir.ComponentName("proc-1"))
	assert.Equal(t, "group-1", dir.ProcessGroupID("proc-1", "FetchData"))
	assert.Equal(t, "Ingest Flows", dir.ComponentName(dir.ProcessGroupID("proc-1", "FetchData")))

	assert.Equal(t, "", dir.ComponentName("unknown"))
	assert.Equal(t, "", dir.ProcessGroupID("unknown", ""))
	assert.Equal(t, "", dir.ComponentName(""))

	var nilDir *MapDirectory
	assert.Equal(t, "", nilDir.ComponentName("proc-1"))
	assert.Equal(t, "", nilDir.ProcessGroupID("proc-1", ""))
}

func TestNormalized_HasIdentity(t *testing.T) {
	full := Normalized{
		ProcessGroupName: "Ingest Flows",
		ComponentName:    "FetchData",
		ComponentType:    "GetSFTP",
	}
	assert.True(t, full.HasIdentity())

	tests := []struct {
		name   string
		mutate func(*Normalized)
	}{
		{"missing process group name", func(n *Normalized) { n.ProcessGroupName = "" }},
		{"missing component name", func(n *Normalized) { n.ComponentName = "" }},
		{"missing component type", func(n *Normalized) { n.ComponentType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := full
			tt.mutate(&n)
			assert.False(t, n.HasIdentity())
		})
	}
}

func TestGroupKey_Equality(t *testing.T) {
	a := Normalized{
		EventID:         1,
		EventTimeMillis: 1000,
		ComponentID:     "proc-1",
		Details:         "Auto-Terminated by Failure Relationship",
		EventType:       "DROP",
	}
	b := a
	b.EventID = 2
	b.EventTimeMillis = 9999

	// Events differing only in id or timestamps group together.
	assert.Equal(t, a.Key(), b.Key())

	c := a
	c.Details = "other details"
	assert.NotEqual(t, a.Key(), c.Key())

	d := a
	d.EventType = "ROUTE"
	assert.NotEqual(t, a.Key(), d.Key())
}
