package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"studysync-backend/internal/dialogue"
)

const taskColumns = `
	id, user_id, task, event_date, event_time, COALESCE(end_time, ''),
	participants, locations, status, source, created_at, updated_at`

// isoDateClause limits range filters to tasks whose date is a calendar day.
// Dates typed in chat ("tomorrow", "March 3") are stored verbatim and would
// otherwise compare as text.
const isoDateClause = `event_date ~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}$'`

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var t Task
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.Task,
		&t.Date,
		&t.Time,
		&t.EndTime,
		pq.Array(&t.Participants),
		pq.Array(&t.Locations),
		&t.Status,
		&t.Source,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if t.Participants == nil {
		t.Participants = []string{}
	}
	if t.Locations == nil {
		t.Locations = []string{}
	}
	return t, err
}

func (r *Repo) Create(ctx context.Context, userID, source string, in Input) (Task, error) {
	in, err := in.Normalize()
	if err != nil {
		return Task{}, err
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, task, event_date, event_time, end_time, participants, locations, source)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING`+taskColumns,
		userID, in.Task, in.Date, in.Time, in.EndTime,
		pq.Array(in.Participants), pq.Array(in.Locations), source,
	)
	return scanTask(row)
}

// SaveDraft stores a complete chat draft as a new task.
func (r *Repo) SaveDraft(ctx context.Context, userID string, d dialogue.Draft) (int, error) {
	t, err := r.Create(ctx, userID, SourceChat, Input{
		Task:         d.Task,
		Date:         d.Date,
		Time:         d.Time,
		Participants: d.Participants,
		Locations:    d.Locations,
	})
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (r *Repo) Get(ctx context.Context, userID string, id int) (Task, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT`+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (r *Repo) List(ctx context.Context, userID string, f Filter) ([]Task, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	switch {
	case f.Date != "":
		args = append(args, f.Date)
		where = append(where, fmt.Sprintf("event_date = $%d", len(args)))
	default:
		if f.Start != "" {
			args = append(args, f.Start)
			where = append(where, fmt.Sprintf("event_date >= $%d", len(args)))
		}
		if f.End != "" {
			args = append(args, f.End)
			where = append(where, fmt.Sprintf("event_date <= $%d", len(args)))
		}
		if f.Start != "" || f.End != "" {
			where = append(where, isoDateClause)
		}
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT`+taskColumns+`
		FROM tasks
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY event_date ASC, event_time ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *Repo) Update(ctx context.Context, userID string, id int, in Input) (Task, error) {
	in, err := in.Normalize()
	if err != nil {
		return Task{}, err
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE tasks
		SET task = $1, event_date = $2, event_time = $3, end_time = NULLIF($4, ''),
			participants = $5, locations = $6, updated_at = now()
		WHERE id = $7 AND user_id = $8
		RETURNING`+taskColumns,
		in.Task, in.Date, in.Time, in.EndTime,
		pq.Array(in.Participants), pq.Array(in.Locations),
		id, userID,
	)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// SetStatus changes the status and returns the previous one.
func (r *Repo) SetStatus(ctx context.Context, userID string, id int, status string) (prev string, err error) {
	if !ValidStatus(status) {
		return "", ErrInvalidStatus
	}

	err = r.DB.QueryRowContext(ctx, `
		UPDATE tasks t
		SET status = $1, updated_at = now()
		FROM (SELECT id, status FROM tasks WHERE id = $2 AND user_id = $3 FOR UPDATE) old
		WHERE t.id = old.id
		RETURNING old.status
	`, status, id, userID).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return prev, err
}

func (r *Repo) Delete(ctx context.Context, userID string, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
