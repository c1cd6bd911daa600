package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"studysync-backend/internal/analytics"
	"studysync-backend/internal/auth"
	"studysync-backend/internal/config"
	"studysync-backend/internal/db"
	"studysync-backend/internal/dialogue"
	"studysync-backend/internal/nlp"
	"studysync-backend/internal/tasks"
)

const sweepInterval = time.Minute

// NewExtractor picks the extraction backend configured in cfg.
func NewExtractor(cfg *config.Config) dialogue.Extractor {
	if cfg.Extractor == "openai" {
		return nlp.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.NLPTimeout)
	}
	c := nlp.New(cfg.NLPURL, cfg.NLPTimeout)
	c.APIKey = cfg.NLPAPIKey
	return c
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	database, err := db.Connect(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	logger.Info("connected to postgres", "host", cfg.DBHost, "db", cfg.DBName)

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	secret := []byte(cfg.JWTSecret)
	var supabaseSecret []byte
	if cfg.SupabaseJWTSecret != "" {
		supabaseSecret = []byte(cfg.SupabaseJWTSecret)
	}

	users := auth.NewUsers(database)
	sessions := dialogue.NewStore(NewExtractor(cfg),
		dialogue.WithExtractTimeout(cfg.NLPTimeout),
		dialogue.WithLogger(logger),
	)

	deps := Deps{
		Logger:      logger,
		JWTSecret:   secret,
		Auth:        auth.New(secret, supabaseSecret),
		Users:       users,
		Tasks:       tasks.NewRepo(database),
		Sessions:    sessions,
		Events:      analytics.NewRecorder(database),
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.GoogleEnabled() {
		deps.Google = auth.NewGoogleAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, users, secret)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweepSessions(ctx, sessions, cfg.SessionIdleTTL, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server is running", "addr", srv.Addr, "extractor", cfg.Extractor)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, sessions *dialogue.Store, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Sweep(now, ttl); n > 0 {
				logger.Debug("evicted idle chat sessions", "count", n, "remaining", sessions.Len())
			}
		}
	}
}
