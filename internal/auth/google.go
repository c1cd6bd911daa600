package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleAuth implements "Sign in with Google" via the authorization code
// flow and issues regular app tokens.
type GoogleAuth struct {
	OAuth       *oauth2.Config
	Users       *Users
	Secret      []byte
	UserInfoURL string
}

func NewGoogleAuth(clientID, clientSecret, redirectURL string, users *Users, secret []byte) *GoogleAuth {
	return &GoogleAuth{
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		Users:       users,
		Secret:      secret,
		UserInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleAuth) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := generateState(g.Secret, uuid.New().String())
		if err != nil {
			http.Error(w, "state error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, g.OAuth.AuthCodeURL(state), http.StatusFound)
	}
}

func (g *GoogleAuth) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if err := verifyState(g.Secret, q.Get("state")); err != nil {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		tok, err := g.OAuth.Exchange(r.Context(), code)
		if err != nil {
			slog.Warn("google code exchange failed", "error", err)
			http.Error(w, "google exchange failed", http.StatusUnauthorized)
			return
		}

		gu, err := g.fetchUser(r.Context(), tok)
		if err != nil {
			slog.Warn("google userinfo failed", "error", err)
			http.Error(w, "google userinfo failed", http.StatusBadGateway)
			return
		}
		if gu.Email == "" || !gu.EmailVerified {
			http.Error(w, "google email not verified", http.StatusForbidden)
			return
		}

		user, err := g.Users.UpsertGoogle(r.Context(), gu.Sub, gu.Email, gu.Name, gu.Picture)
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrGoogleAccountConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			slog.Error("google upsert failed", "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		writeToken(w, http.StatusOK, g.Secret, user.ID)
	}
}

func (g *GoogleAuth) fetchUser(ctx context.Context, tok *oauth2.Token) (googleUser, error) {
	client := g.OAuth.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return googleUser{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUser{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUser{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return googleUser{}, err
	}
	if gu.Sub == "" {
		return googleUser{}, errors.New("userinfo without sub")
	}
	return gu, nil
}
