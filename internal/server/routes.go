package server

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"studysync-backend/internal/analytics"
	"studysync-backend/internal/auth"
	"studysync-backend/internal/dialogue"
	"studysync-backend/internal/httpmw"
	"studysync-backend/internal/tasks"
)

// Deps is everything the HTTP surface needs. Google is optional.
type Deps struct {
	Logger      *slog.Logger
	JWTSecret   []byte
	Auth        auth.Middleware
	Users       *auth.Users
	Google      *auth.GoogleAuth
	Tasks       *tasks.Repo
	Sessions    *dialogue.Store
	Events      *analytics.Recorder
	CORSOrigins []string
}

func NewHandler(d Deps) http.Handler {
	mux := http.NewServeMux()
	protect := d.Auth.Wrap

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// ----- AUTH -----
	mux.HandleFunc("POST /auth/register", auth.RegisterHandler(d.Users, d.JWTSecret))
	mux.HandleFunc("POST /auth/login", auth.LoginHandler(d.Users, d.JWTSecret))
	mux.HandleFunc("POST /auth/logout", auth.LogoutHandler())
	mux.HandleFunc("GET /auth/me", protect(auth.MeHandler(d.Users)))
	mux.HandleFunc("DELETE /auth/account", protect(auth.DeleteAccountHandler(d.Users, d.Sessions.DeleteUser)))
	if d.Google != nil {
		mux.HandleFunc("GET /auth/google/login", d.Google.LoginHandler())
		mux.HandleFunc("GET /auth/google/callback", d.Google.CallbackHandler())
	}

	// ----- CHAT -----
	chat := dialogue.NewHandler(d.Sessions, d.Tasks, d.Events)
	chat.Logger = d.Logger
	mux.HandleFunc("POST /api/chat/sessions", protect(chat.CreateSession))
	mux.HandleFunc("GET /api/chat/sessions", protect(chat.ListSessions))
	mux.HandleFunc("GET /api/chat/sessions/{id}", protect(chat.GetSession))
	mux.HandleFunc("DELETE /api/chat/sessions/{id}", protect(chat.DeleteSession))
	mux.HandleFunc("POST /api/chat/sessions/{id}/messages", protect(chat.PostMessage))
	mux.HandleFunc("POST /api/chat/sessions/{id}/reset", protect(chat.ResetSession))
	mux.HandleFunc("POST /api/chat/sessions/{id}/save", protect(chat.SaveSession))

	// ----- TASKS -----
	mux.HandleFunc("GET /api/tasks", protect(tasks.GetTasksHandler(d.Tasks)))
	mux.HandleFunc("POST /api/tasks", protect(tasks.CreateTaskHandler(d.Tasks, d.Events)))
	mux.HandleFunc("GET /api/tasks/calendar", protect(tasks.CalendarHandler(d.Tasks)))
	mux.HandleFunc("GET /api/tasks/{id}", protect(tasks.GetTaskHandler(d.Tasks)))
	mux.HandleFunc("PUT /api/tasks/{id}", protect(tasks.UpdateTaskHandler(d.Tasks, d.Events)))
	mux.HandleFunc("DELETE /api/tasks/{id}", protect(tasks.DeleteTaskHandler(d.Tasks)))
	mux.HandleFunc("POST /api/tasks/{id}/status", protect(tasks.SetTaskStatusHandler(d.Tasks, d.Events)))

	// ----- ANALYTICS -----
	mux.HandleFunc("POST /api/analytics/app_opened", protect(analytics.AppOpenedHandler(d.Events)))

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Platform", "X-App-Version", "X-Session-Id", "Idempotency-Key"},
		AllowCredentials: true,
	})

	return httpmw.Chain(c.Handler(mux),
		httpmw.WithRequestID,
		httpmw.WithAccessLog(d.Logger),
		httpmw.WithRecover(d.Logger),
	)
}
