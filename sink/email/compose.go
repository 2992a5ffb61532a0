package email

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/provreport/provenance"
)

// composeSubject builds the subject line. With grouping enabled and more
// than one similar event, the count leads the subject.
func (s *Sink) composeSubject(event *provenance.Normalized, groupSize int) string {
	var b strings.Builder

	if s.cfg.SubjectPrefix != "" {
		fmt.Fprintf(&b, "[%s] ", s.cfg.SubjectPrefix)
	}

	if s.cfg.GroupSimilarErrors && groupSize > 1 {
		fmt.Fprintf(&b, "%d errors occurred in processor %s in process group %s",
			groupSize, event.ComponentName, event.ProcessGroupName)
	} else {
		fmt.Fprintf(&b, "Error occurred in processor %s in process group %s",
			event.ComponentName, event.ProcessGroupName)
	}

	return b.String()
}

// composeBody renders the notification body. Section order is fixed:
// affected processor, error information, updated attributes, previous
// attributes, content links. Attribute keys are sorted lexicographically
// so repeated notifications for the same event are identical.
func composeBody(event *provenance.Normalized, grouped bool, groupSize int) string {
	var b strings.Builder

	b.WriteString("Affected processor:\n")
	fmt.Fprintf(&b, "\tProcessor name: %s\n", event.ComponentName)
	fmt.Fprintf(&b, "\tProcessor type: %s\n", event.ComponentType)
	fmt.Fprintf(&b, "\tProcess group: %s\n", event.ProcessGroupName)

	if grouped && groupSize > 1 {
		fmt.Fprintf(&b, "\tTotal similar errors : %d\n", groupSize)
	}

	fmt.Fprintf(&b, "\tURL: %s\n", event.ComponentURL)

	b.WriteString("\n")
	b.WriteString("Error information:\n")
	fmt.Fprintf(&b, "\tDetails: %s\n", event.Details)
	fmt.Fprintf(&b, "\tEvent type: %s\n", event.EventType)

	if len(event.UpdatedAttributes) > 0 {
		b.WriteString("\nFlow file - Updated attributes:\n")
		writeSortedAttributes(&b, event.UpdatedAttributes)
	}

	if len(event.PreviousAttributes) > 0 {
		b.WriteString("\nFlow file - Previous attributes:\n")
		writeSortedAttributes(&b, event.PreviousAttributes)
	}

	b.WriteString("\nFlow file - content:\n")
	fmt.Fprintf(&b, "\tDownload input: %s\n", event.DownloadInputURI)
	fmt.Fprintf(&b, "\tDownload output: %s\n", event.DownloadOutputURI)
	fmt.Fprintf(&b, "\tView input: %s\n", event.ViewInputURI)
	fmt.Fprintf(&b, "\tView output: %s\n", event.ViewOutputURI)

	b.WriteString("\n")
	return b.String()
}

func writeSortedAttributes(b *strings.Builder, attributes map[string]string) {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(b, "\t%s: %s\n", name, attributes[name])
	}
}
