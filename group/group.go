// Package group partitions error events into similarity groups for
// deduplicated alerting. Two events are similar iff they share a
// provenance.GroupKey (component id, details, event type).
package group

import "github.com/c360/provreport/provenance"

// Group holds the error events sharing one key, in first-seen order.
type Group struct {
	Key    provenance.GroupKey
	Events []*provenance.Normalized
}

// First returns the event used as the group's message template.
func (g *Group) First() *provenance.Normalized {
	return g.Events[0]
}

// Size returns the group cardinality, reported as the total similar
// errors count.
func (g *Group) Size() int {
	return len(g.Events)
}

// Errors filters a batch down to Error-status events, preserving order.
func Errors(events []*provenance.Normalized) []*provenance.Normalized {
	var out []*provenance.Normalized
	for _, e := range events {
		if e.Status == provenance.StatusError {
			out = append(out, e)
		}
	}
	return out
}

// BySimilarity partitions Error-status events by group key. Groups are
// returned in order of first appearance, as are events within a group.
// Non-error events are ignored.
func BySimilarity(events []*provenance.Normalized) []Group {
	index := make(map[provenance.GroupKey]int)
	var groups []Group

	for _, e := range Errors(events) {
		key := e.Key()
		if i, ok := index[key]; ok {
			groups[i].Events = append(groups[i].Events, e)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Events: []*provenance.Normalized{e}})
	}

	return groups
}
