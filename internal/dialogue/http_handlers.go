package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"studysync-backend/internal/analytics"
	"studysync-backend/internal/auth"
)

const saveFailedMessage = "Failed to save the task. Your draft was kept, please try again."

type Handler struct {
	Sessions *Store
	Saver    Saver
	Events   *analytics.Recorder
	Logger   *slog.Logger
}

func NewHandler(sessions *Store, saver Saver, events *analytics.Recorder) *Handler {
	return &Handler{Sessions: sessions, Saver: saver, Events: events, Logger: slog.Default()}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// session resolves the {id} path value against the caller's sessions. It
// writes the error response itself and returns nil on failure.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, string) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, ""
	}
	s, err := h.Sessions.Get(r.PathValue("id"), uid)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat session not found")
		return nil, ""
	}
	return s, uid
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s, err := h.Sessions.Create(uid)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	type item struct {
		ID      string `json:"id"`
		State   State  `json:"state"`
		Pending Field  `json:"pending_field"`
		Turns   int    `json:"turns"`
	}
	out := []item{}
	for _, s := range h.Sessions.List(uid) {
		snap := s.Snapshot()
		out = append(out, item{ID: snap.ID, State: snap.State, Pending: snap.Pending, Turns: len(snap.Turns)})
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	s, uid := h.session(w, r)
	if s == nil {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// The turn must finish even if the client goes away; the extraction
	// timeout still bounds it.
	reply, err := s.Submit(context.WithoutCancel(r.Context()), body.Text)
	switch {
	case errors.Is(err, ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "message is empty")
		return
	case errors.Is(err, ErrMissingIdentity):
		writeError(w, http.StatusUnauthorized, "sign in to chat")
		return
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusConflict, "previous message is still being processed")
		return
	case errors.Is(err, ErrSessionReset):
		writeError(w, http.StatusConflict, "conversation was reset")
		return
	case err != nil:
		h.logger().Error("chat submit failed", "session_id", s.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = h.Events.Record(r, uid, "chat_message_sent", map[string]any{
		"chat_session_id": s.ID,
		"pending_field":   string(reply.Answered),
		"text_len":        len(body.Text),
	})
	if reply.ExtractionFailed {
		_ = h.Events.Record(r, uid, "extraction_failed", map[string]any{
			"chat_session_id": s.ID,
			"pending_field":   string(reply.Answered),
		})
	}
	if reply.State == StateComplete {
		_ = h.Events.Record(r, uid, "task_completed_in_chat", map[string]any{
			"chat_session_id": s.ID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply":   reply,
		"session": s.Snapshot(),
	})
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	s, _ := h.session(w, r)
	if s == nil {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	s, uid := h.session(w, r)
	if s == nil {
		return
	}

	taskID, err := s.Save(r.Context(), h.Saver)
	switch {
	case errors.Is(err, ErrDraftIncomplete):
		writeError(w, http.StatusConflict, "task is not complete yet")
		return
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusConflict, "previous message is still being processed")
		return
	case errors.Is(err, ErrPersistenceFailed):
		writeError(w, http.StatusBadGateway, saveFailedMessage)
		return
	case err != nil:
		h.logger().Error("chat save failed", "session_id", s.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = h.Events.Record(r, uid, "task_saved", map[string]any{
		"chat_session_id": s.ID,
		"task_id":         taskID,
		"input_method":    "chat",
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"task_id": taskID,
		"session": s.Snapshot(),
	})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.Sessions.Delete(r.PathValue("id"), uid); err != nil {
		writeError(w, http.StatusNotFound, "chat session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
