package nlp

import (
	"strings"

	"studysync-backend/internal/dialogue"
)

// extractRequest is the body sent to the extraction service.
type extractRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

// payload is the extracted record as the service spells it. Fields the
// service could not find come back as null or empty.
type payload struct {
	Task         string   `json:"task"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Participants []string `json:"participants"`
	Locations    []string `json:"locations"`
}

// extractResponse accepts both spellings the service has used for the
// extracted record.
type extractResponse struct {
	Extracted     *payload `json:"extracted"`
	ExtractedInfo *payload `json:"extracted_info"`
	MissingFields []string `json:"missingFields"`
	Message       string   `json:"message"`
}

func (r extractResponse) record() *payload {
	if r.Extracted != nil {
		return r.Extracted
	}
	return r.ExtractedInfo
}

func (p payload) fields() dialogue.Fields {
	return dialogue.Fields{
		Task:         strings.TrimSpace(p.Task),
		Date:         strings.TrimSpace(p.Date),
		Time:         strings.TrimSpace(p.Time),
		Participants: cleanList(p.Participants),
		Locations:    cleanList(p.Locations),
	}
}

// parseMissing keeps the known field names, in the order given.
func parseMissing(names []string) []dialogue.Field {
	var out []dialogue.Field
	for _, n := range names {
		if f := dialogue.ParseField(n); f != dialogue.FieldNone {
			out = append(out, f)
		}
	}
	return out
}

// missingOf derives the missing list when the backend does not report one.
func missingOf(f dialogue.Fields) []dialogue.Field {
	d := dialogue.NewDraft()
	d.ApplyExtracted(f)

	var out []dialogue.Field
	for _, name := range []dialogue.Field{
		dialogue.FieldTask,
		dialogue.FieldDate,
		dialogue.FieldTime,
		dialogue.FieldParticipants,
		dialogue.FieldLocations,
	} {
		if d.IsFieldMissing(name) {
			out = append(out, name)
		}
	}
	return out
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
