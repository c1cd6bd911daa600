package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextMissingField_Order(t *testing.T) {
	d := NewDraft()
	assert.Equal(t, FieldTask, d.NextMissingField())

	d.Task = "study"
	assert.Equal(t, FieldDate, d.NextMissingField())

	d.Date = "2025-03-03"
	assert.Equal(t, FieldTime, d.NextMissingField())

	d.Time = "15:00"
	assert.Equal(t, FieldParticipants, d.NextMissingField())

	d.Participants = []string{"Ana"}
	assert.Equal(t, FieldLocations, d.NextMissingField())

	d.Locations = []string{"library"}
	assert.Equal(t, FieldNone, d.NextMissingField())
	assert.True(t, d.IsComplete())
}

func TestNextMissingField_DateBeforeLocations(t *testing.T) {
	d := &Draft{
		Task:         "review notes",
		Time:         "10:00",
		Participants: []string{"Sam"},
	}

	assert.Equal(t, FieldDate, d.NextMissingField())
	assert.Equal(t, FieldDate, d.NextMissingField())
}

func TestIsFieldMissing(t *testing.T) {
	d := NewDraft()
	for _, f := range []Field{FieldTask, FieldDate, FieldTime, FieldParticipants, FieldLocations} {
		assert.True(t, d.IsFieldMissing(f), f)
	}
	assert.False(t, d.IsFieldMissing(FieldNone))
	assert.False(t, d.IsFieldMissing(Field("priority")))

	d.Locations = []string{"lab"}
	assert.False(t, d.IsFieldMissing(FieldLocations))
}

func TestApplyExtracted_DoesNotOverwriteScalars(t *testing.T) {
	d := NewDraft()
	d.Task = "meet"

	d.ApplyExtracted(Fields{Task: "call", Date: " March 3 "})

	assert.Equal(t, "meet", d.Task)
	assert.Equal(t, "March 3", d.Date)
	assert.Empty(t, d.Time)
}

func TestApplyExtracted_Idempotent(t *testing.T) {
	d := NewDraft()
	p := Fields{Participants: []string{"Ana"}}

	d.ApplyExtracted(p)
	d.ApplyExtracted(p)

	assert.Equal(t, []string{"Ana"}, d.Participants)
}

func TestApplyExtracted_ExtendsCollections(t *testing.T) {
	d := NewDraft()
	d.Participants = []string{"Ana"}

	d.ApplyExtracted(Fields{
		Participants: []string{"Sam", "Ana", "ana", "  ", " Lee "},
		Locations:    []string{"", "library"},
	})

	assert.Equal(t, []string{"Ana", "Sam", "ana", "Lee"}, d.Participants)
	assert.Equal(t, []string{"library"}, d.Locations)
}

func TestAssignLiteral(t *testing.T) {
	d := NewDraft()

	d.AssignLiteral(FieldTime, "  after lunch ")
	d.AssignLiteral(FieldLocations, " library ")
	d.AssignLiteral(FieldLocations, "library")
	d.AssignLiteral(FieldParticipants, "   ")

	assert.Equal(t, "after lunch", d.Time)
	assert.Equal(t, []string{"library"}, d.Locations)
	assert.Empty(t, d.Participants)
}

func TestAssignExtracted_OnlyPendingSlot(t *testing.T) {
	d := NewDraft()
	d.Task = "meet"

	ok := d.assignExtracted(FieldDate, Fields{Date: "March 3", Locations: []string{"cafe"}})

	assert.True(t, ok)
	assert.Equal(t, "March 3", d.Date)
	assert.Empty(t, d.Locations)

	ok = d.assignExtracted(FieldTime, Fields{Locations: []string{"cafe"}})
	assert.False(t, ok)
	assert.Empty(t, d.Time)
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "What would you like to do?", Prompt(FieldTask))
	assert.Equal(t, "What date is this for?", Prompt(FieldDate))
	assert.Equal(t, "What time would you like to schedule this for?", Prompt(FieldTime))
	assert.Equal(t, "Who would you like to include?", Prompt(FieldParticipants))
	assert.Equal(t, "Where would you like to meet?", Prompt(FieldLocations))
	assert.Empty(t, Prompt(FieldNone))
}

func TestParseField(t *testing.T) {
	assert.Equal(t, FieldLocations, ParseField(" locations"))
	assert.Equal(t, FieldNone, ParseField("priority"))
	assert.Equal(t, FieldNone, ParseField(""))
}

func TestCompletionSummary(t *testing.T) {
	d := &Draft{
		Task:         "Meet",
		Date:         "March 3",
		Time:         "3pm",
		Participants: []string{"Sam", "Ana"},
		Locations:    []string{"library"},
	}

	want := "Great! Here's your complete task:" +
		"\n- Task: \"Meet\"" +
		"\n- Date: March 3" +
		"\n- Time: 3pm" +
		"\n- Participants: Sam, Ana" +
		"\n- Locations: library"
	assert.Equal(t, want, CompletionSummary(d))
}

func TestDescribeFields_SkipsAbsent(t *testing.T) {
	assert.Equal(t, "\n- Date: tomorrow", DescribeFields(Fields{Date: "tomorrow"}))
	assert.Empty(t, DescribeFields(Fields{}))
}
