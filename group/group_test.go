package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/provreport/provenance"
)

func errorEvent(id int64, componentID, details, eventType string) *provenance.Normalized {
	return &provenance.Normalized{
		EventID:       id,
		ComponentID:   componentID,
		Details:       details,
		EventType:     eventType,
		Status:        provenance.StatusError,
		ComponentName: "FetchData",
	}
}

func TestErrors_FiltersByStatus(t *testing.T) {
	events := []*provenance.Normalized{
		{EventID: 1, Status: provenance.StatusInfo},
		{EventID: 2, Status: provenance.StatusError},
		{EventID: 3, Status: provenance.StatusInfo},
		{EventID: 4, Status: provenance.StatusError},
	}

	errs := Errors(events)
	require.Len(t, errs, 2)
	assert.Equal(t, int64(2), errs[0].EventID)
	assert.Equal(t, int64(4), errs[1].EventID)
}

func TestBySimilarity_GroupsSharedKeys(t *testing.T) {
	events := []*provenance.Normalized{
		errorEvent(1, "proc-1", "Auto-Terminated by Failure Relationship", "DROP"),
		errorEvent(2, "proc-1", "Auto-Terminated by Failure Relationship", "DROP"),
		errorEvent(3, "proc-2", "Auto-Terminated by Failure Relationship", "DROP"),
		errorEvent(4, "proc-1", "Auto-Terminated by Failure Relationship", "DROP"),
	}

	groups := BySimilarity(events)
	require.Len(t, groups, 2)

	assert.Equal(t, 3, groups[0].Size())
	assert.Equal(t, int64(1), groups[0].First().EventID)
	assert.Equal(t, "proc-1", groups[0].Key.ComponentID)

	assert.Equal(t, 1, groups[1].Size())
	assert.Equal(t, int64(3), groups[1].First().EventID)
}

func TestBySimilarity_KeyDimensions(t *testing.T) {
	events := []*provenance.Normalized{
		errorEvent(1, "proc-1", "details-a", "DROP"),
		errorEvent(2, "proc-1", "details-b", "DROP"),
		errorEvent(3, "proc-1", "details-a", "ROUTE"),
	}

	groups := BySimilarity(events)
	assert.Len(t, groups, 3)
}

func TestBySimilarity_IgnoresInfoEvents(t *testing.T) {
	events := []*provenance.Normalized{
		{EventID: 1, Status: provenance.StatusInfo, ComponentID: "proc-1"},
		errorEvent(2, "proc-1", "details", "DROP"),
	}

	groups := BySimilarity(events)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(2), groups[0].First().EventID)
}

func TestBySimilarity_MissingDetailsGroupsUnderEmptyString(t *testing.T) {
	events := []*provenance.Normalized{
		errorEvent(1, "proc-1", "", "DROP"),
		errorEvent(2, "proc-1", "", "DROP"),
	}

	groups := BySimilarity(events)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Size())
	assert.Equal(t, "", groups[0].Key.Details)
}

func TestBySimilarity_EmptyInput(t *testing.T) {
	assert.Empty(t, BySimilarity(nil))
	assert.Empty(t, BySimilarity([]*provenance.Normalized{}))
}
