package auth

import (
	"context"
	"net/http"
	"strings"

	"studysync-backend/internal/analytics"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

type Middleware struct {
	secret         []byte
	supabaseSecret []byte
}

// New builds the bearer-token middleware. supabaseSecret may be nil, in which
// case only app-issued tokens are accepted.
func New(secret, supabaseSecret []byte) Middleware {
	return Middleware{secret: secret, supabaseSecret: supabaseSecret}
}

// Authenticate resolves a bearer token to a user id.
func (m Middleware) Authenticate(tokenString string) (string, error) {
	if uid, err := ParseToken(m.secret, tokenString); err == nil {
		return uid, nil
	}
	if len(m.supabaseSecret) > 0 {
		if uid, err := ParseSupabaseToken(m.supabaseSecret, tokenString); err == nil {
			return uid, nil
		}
	}
	return "", ErrInvalidToken
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		userID, err := m.Authenticate(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = analytics.WithUserID(ctx, userID)

		next(w, r.WithContext(ctx))
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}
