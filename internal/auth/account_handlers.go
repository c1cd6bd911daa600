package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Tokens are stateless; the client just drops its copy.
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}

// DeleteAccountHandler removes the caller's account and data. onDeleted, if
// set, runs afterwards so in-memory state (chat sessions) can be dropped.
func DeleteAccountHandler(users *Users, onDeleted func(userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := users.Delete(r.Context(), uid)
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("delete account failed", "user_id", uid, "error", err)
			http.Error(w, "delete account failed", http.StatusInternalServerError)
			return
		}

		if onDeleted != nil {
			onDeleted(uid)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}
