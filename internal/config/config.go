package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Port     int
	LogLevel string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret         string
	SupabaseJWTSecret string

	// Extractor selects the entity extraction backend: "nlp" or "openai".
	Extractor  string
	NLPURL     string
	NLPAPIKey  string
	NLPTimeout time.Duration

	OpenAIKey   string
	OpenAIModel string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CORSOrigins    []string
	SessionIdleTTL time.Duration
}

// SetDefaults registers every key on v so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "studysync")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SUPABASE_JWT_SECRET", "")

	v.SetDefault("EXTRACTOR", "nlp")
	v.SetDefault("NLP_URL", "http://localhost:8000")
	v.SetDefault("NLP_API_KEY", "")
	v.SetDefault("NLP_TIMEOUT", 10*time.Second)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "")

	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("SESSION_IDLE_TTL", 2*time.Hour)
}

func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	port := v.GetInt("DB_PORT")
	if port <= 0 {
		port = 5432 // fallback
	}

	timeout := v.GetDuration("NLP_TIMEOUT")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ttl := v.GetDuration("SESSION_IDLE_TTL")
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	extractor := strings.ToLower(strings.TrimSpace(v.GetString("EXTRACTOR")))
	if extractor != "openai" {
		extractor = "nlp"
	}

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     port,
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		JWTSecret:         v.GetString("JWT_SECRET"),
		SupabaseJWTSecret: v.GetString("SUPABASE_JWT_SECRET"),

		Extractor:  extractor,
		NLPURL:     strings.TrimRight(v.GetString("NLP_URL"), "/"),
		NLPAPIKey:  v.GetString("NLP_API_KEY"),
		NLPTimeout: timeout,

		OpenAIKey:   v.GetString("OPENAI_API_KEY"),
		OpenAIModel: v.GetString("OPENAI_MODEL"),

		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),

		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		SessionIdleTTL: ttl,
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
