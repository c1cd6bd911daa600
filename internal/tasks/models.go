package tasks

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusTodo = "todo"
	StatusDone = "done"

	SourceManual = "manual"
	SourceChat   = "chat"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// Task is a scheduled item on the user's calendar and to-do list.
type Task struct {
	ID           int       `json:"id"`
	UserID       string    `json:"user_id"`
	Task         string    `json:"task"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	EndTime      string    `json:"end_time,omitempty"`
	Participants []string  `json:"participants"`
	Locations    []string  `json:"locations"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is a status a task may be set to.
func ValidStatus(s string) bool {
	return s == StatusTodo || s == StatusDone
}

func cleanList(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
