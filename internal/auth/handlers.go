package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterHandler(users *Users, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		body.Email = strings.TrimSpace(body.Email)
		if body.Email == "" || body.Password == "" {
			http.Error(w, "email & password required", http.StatusBadRequest)
			return
		}
		if _, err := mail.ParseAddress(body.Email); err != nil {
			http.Error(w, "invalid email", http.StatusBadRequest)
			return
		}
		if len(body.Password) < minPasswordLen {
			http.Error(w, "password too short", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash failed", http.StatusInternalServerError)
			return
		}

		user, err := users.Create(r.Context(), body.Email, string(hash))
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		if err != nil {
			slog.Error("register failed", "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeToken(w, http.StatusCreated, secret, user.ID)
	}
}

func LoginHandler(users *Users, secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		user, err := users.ByEmail(r.Context(), body.Email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			slog.Error("login lookup failed", "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		// Google-only accounts have no password hash.
		if err != nil || user.Password == "" ||
			bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		writeToken(w, http.StatusOK, secret, user.ID)
	}
}

func MeHandler(users *Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := users.ByID(r.Context(), uid)
		if errors.Is(err, ErrUserNotFound) {
			// Supabase users may not have a local row.
			user = User{ID: uid}
		} else if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	}
}

func writeToken(w http.ResponseWriter, status int, secret []byte, userID string) {
	token, err := GenerateToken(secret, userID)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"token":   token,
	})
}
