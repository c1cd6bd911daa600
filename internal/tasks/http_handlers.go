package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studysync-backend/internal/analytics"
	"studysync-backend/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func taskIDFromPath(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil && id > 0
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// GetTasksHandler lists the caller's tasks, optionally for one ?date= or a
// ?start=&end= range (YYYY-MM-DD).
func GetTasksHandler(repo *Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		f := Filter{
			Date:  strings.TrimSpace(q.Get("date")),
			Start: strings.TrimSpace(q.Get("start")),
			End:   strings.TrimSpace(q.Get("end")),
		}
		for _, d := range []string{f.Date, f.Start, f.End} {
			if d != "" && !validDate(d) {
				http.Error(w, "dates must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
		}

		list, err := repo.List(r.Context(), uid, f)
		if err != nil {
			slog.Error("list tasks failed", "user_id", uid, "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func CalendarHandler(repo *Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := repo.List(r.Context(), uid, Filter{})
		if err != nil {
			slog.Error("calendar tasks failed", "user_id", uid, "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, Nest(list))
	}
}

func GetTaskHandler(repo *Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, ok := taskIDFromPath(r)
		if !ok {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}

		t, err := repo.Get(r.Context(), uid, id)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func CreateTaskHandler(repo *Repo, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body Input
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if _, err := body.Normalize(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		t, err := repo.Create(r.Context(), uid, SourceManual, body)
		if err != nil {
			slog.Error("create task failed", "user_id", uid, "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		_ = rec.Record(r, uid, "task_created", map[string]any{
			"task_id":          t.ID,
			"input_method":     "form",
			"participants_len": len(t.Participants),
			"locations_len":    len(t.Locations),
		})

		writeJSON(w, http.StatusCreated, t)
	}
}

func UpdateTaskHandler(repo *Repo, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, ok := taskIDFromPath(r)
		if !ok {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}

		var body Input
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if _, err := body.Normalize(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		t, err := repo.Update(r.Context(), uid, id, body)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("update task failed", "user_id", uid, "task_id", id, "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		_ = rec.Record(r, uid, "task_updated", map[string]any{"task_id": t.ID})

		writeJSON(w, http.StatusOK, t)
	}
}

func SetTaskStatusHandler(repo *Repo, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, ok := taskIDFromPath(r)
		if !ok {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}

		var body StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		prev, err := repo.SetStatus(r.Context(), uid, id, body.Status)
		switch {
		case errors.Is(err, ErrInvalidStatus):
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		case errors.Is(err, ErrNotFound):
			http.Error(w, "task not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		if prev != body.Status {
			event := "task_completed"
			if body.Status != StatusDone {
				event = "task_uncompleted"
			}
			_ = rec.Record(r, uid, event, map[string]any{"task_id": id})
		}

		t, err := repo.Get(r.Context(), uid, id)
		if err != nil {
			http.Error(w, "fetch error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(repo *Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, ok := taskIDFromPath(r)
		if !ok {
			http.Error(w, "invalid task id", http.StatusBadRequest)
			return
		}

		err := repo.Delete(r.Context(), uid, id)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
