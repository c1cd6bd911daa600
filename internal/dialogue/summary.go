package dialogue

import "strings"

const (
	FallbackPrompt  = "I couldn't find any details. What is the task?"
	completedHeader = "Great! Here's your complete task:"
)

// DescribeFields lists the known values of f, one "- Label: value" line per
// field, each preceded by a newline. Absent fields are skipped.
func DescribeFields(f Fields) string {
	var b strings.Builder

	if f.Task != "" {
		b.WriteString("\n- Task: \"")
		b.WriteString(f.Task)
		b.WriteString("\"")
	}

	if f.Date != "" {
		b.WriteString("\n- Date: ")
		b.WriteString(f.Date)
	}

	if f.Time != "" {
		b.WriteString("\n- Time: ")
		b.WriteString(f.Time)
	}

	if len(f.Participants) > 0 {
		b.WriteString("\n- Participants: ")
		b.WriteString(strings.Join(f.Participants, ", "))
	}

	if len(f.Locations) > 0 {
		b.WriteString("\n- Locations: ")
		b.WriteString(strings.Join(f.Locations, ", "))
	}

	return b.String()
}

// CompletionSummary is the closing message for a complete draft.
func CompletionSummary(d *Draft) string {
	return completedHeader + DescribeFields(d.Fields())
}
