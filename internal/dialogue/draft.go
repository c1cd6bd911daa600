package dialogue

import "strings"

// Field names one of the five slots of a task draft.
type Field string

const (
	FieldNone         Field = ""
	FieldTask         Field = "task"
	FieldDate         Field = "date"
	FieldTime         Field = "time"
	FieldParticipants Field = "participants"
	FieldLocations    Field = "locations"
)

// Fields is a partial task record as produced by extraction. Empty strings and
// empty slices mean "not provided".
type Fields struct {
	Task         string   `json:"task,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Locations    []string `json:"locations,omitempty"`
}

// Draft is the task record being assembled through conversation.
type Draft struct {
	Task         string   `json:"task"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Participants []string `json:"participants"`
	Locations    []string `json:"locations"`

	// Pending is the field currently being asked for, FieldNone if nothing
	// has been asked yet or the draft is complete.
	Pending Field `json:"pending_field"`
}

type fieldDesc struct {
	name   Field
	prompt string
	scalar func(d *Draft) *string
	list   func(d *Draft) *[]string
}

// fieldOrder is the priority in which missing fields are asked for.
var fieldOrder = []fieldDesc{
	{
		name:   FieldTask,
		prompt: "What would you like to do?",
		scalar: func(d *Draft) *string { return &d.Task },
	},
	{
		name:   FieldDate,
		prompt: "What date is this for?",
		scalar: func(d *Draft) *string { return &d.Date },
	},
	{
		name:   FieldTime,
		prompt: "What time would you like to schedule this for?",
		scalar: func(d *Draft) *string { return &d.Time },
	},
	{
		name:   FieldParticipants,
		prompt: "Who would you like to include?",
		list:   func(d *Draft) *[]string { return &d.Participants },
	},
	{
		name:   FieldLocations,
		prompt: "Where would you like to meet?",
		list:   func(d *Draft) *[]string { return &d.Locations },
	},
}

func lookup(f Field) (fieldDesc, bool) {
	for _, s := range fieldOrder {
		if s.name == f {
			return s, true
		}
	}
	return fieldDesc{}, false
}

// ParseField maps a wire name to a Field. Unknown names yield FieldNone.
func ParseField(name string) Field {
	if s, ok := lookup(Field(strings.TrimSpace(name))); ok {
		return s.name
	}
	return FieldNone
}

// Prompt returns the question asked when f is the pending field.
func Prompt(f Field) string {
	s, ok := lookup(f)
	if !ok {
		return ""
	}
	return s.prompt
}

func NewDraft() *Draft {
	return &Draft{
		Participants: []string{},
		Locations:    []string{},
	}
}

// IsFieldMissing reports whether f is absent (scalar) or empty (collection).
// Unknown fields are never missing.
func (d *Draft) IsFieldMissing(f Field) bool {
	s, ok := lookup(f)
	if !ok {
		return false
	}
	if s.scalar != nil {
		return *s.scalar(d) == ""
	}
	return len(*s.list(d)) == 0
}

// NextMissingField scans task, date, time, participants, locations in that
// order and returns the first missing one, or FieldNone.
func (d *Draft) NextMissingField() Field {
	for _, s := range fieldOrder {
		if d.IsFieldMissing(s.name) {
			return s.name
		}
	}
	return FieldNone
}

func (d *Draft) IsComplete() bool {
	return d.NextMissingField() == FieldNone
}

// ApplyExtracted merges p into the draft. Known scalars are never
// overwritten; collections gain only entries they do not already hold.
func (d *Draft) ApplyExtracted(p Fields) {
	d.setScalar(&d.Task, p.Task)
	d.setScalar(&d.Date, p.Date)
	d.setScalar(&d.Time, p.Time)
	d.Participants = appendUnique(d.Participants, p.Participants...)
	d.Locations = appendUnique(d.Locations, p.Locations...)
}

// AssignLiteral stores the trimmed text as the value of f.
func (d *Draft) AssignLiteral(f Field, text string) {
	s, ok := lookup(f)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.scalar != nil {
		*s.scalar(d) = text
		return
	}
	l := s.list(d)
	*l = appendUnique(*l, text)
}

// assignExtracted fills only f from p. It returns false when p carries no
// value for f.
func (d *Draft) assignExtracted(f Field, p Fields) bool {
	var only Fields
	switch f {
	case FieldTask:
		only.Task = strings.TrimSpace(p.Task)
	case FieldDate:
		only.Date = strings.TrimSpace(p.Date)
	case FieldTime:
		only.Time = strings.TrimSpace(p.Time)
	case FieldParticipants:
		only.Participants = appendUnique(nil, p.Participants...)
	case FieldLocations:
		only.Locations = appendUnique(nil, p.Locations...)
	}
	if only.Task == "" && only.Date == "" && only.Time == "" &&
		len(only.Participants) == 0 && len(only.Locations) == 0 {
		return false
	}
	d.ApplyExtracted(only)
	return true
}

// Fields returns a copy of the draft's values without the pending marker.
func (d *Draft) Fields() Fields {
	return Fields{
		Task:         d.Task,
		Date:         d.Date,
		Time:         d.Time,
		Participants: append([]string(nil), d.Participants...),
		Locations:    append([]string(nil), d.Locations...),
	}
}

func (d *Draft) clone() Draft {
	c := *d
	c.Participants = append([]string{}, d.Participants...)
	c.Locations = append([]string{}, d.Locations...)
	return c
}

func (d *Draft) setScalar(dst *string, v string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(v)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen := false
		for _, have := range dst {
			if have == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
