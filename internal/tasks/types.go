package tasks

import (
	"errors"
	"strings"
)

// Input is the writable part of a task, as accepted by create and update.
type Input struct {
	Task         string   `json:"task"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	EndTime      string   `json:"end_time"`
	Participants []string `json:"participants"`
	Locations    []string `json:"locations"`
}

// Normalize trims every field and checks the required ones.
func (in Input) Normalize() (Input, error) {
	out := Input{
		Task:         strings.TrimSpace(in.Task),
		Date:         strings.TrimSpace(in.Date),
		Time:         strings.TrimSpace(in.Time),
		EndTime:      strings.TrimSpace(in.EndTime),
		Participants: cleanList(in.Participants),
		Locations:    cleanList(in.Locations),
	}
	if out.Task == "" || out.Date == "" || out.Time == "" {
		return Input{}, errors.New("task, date and time are required")
	}
	return out, nil
}

// Filter narrows List. Date takes precedence over the Start/End range.
type Filter struct {
	Date  string
	Start string
	End   string
}

type StatusRequest struct {
	Status string `json:"status"` // todo|done
}
