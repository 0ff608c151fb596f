package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	// BackendURL is the externally reachable base URL of this service; the
	// music provider posts its completion callback here.
	BackendURL      string
	ComicServiceURL string

	GroqAPIKeys []string
	GroqModel   string
	GroqBaseURL string
	SunoAPIKeys []string
	SunoBaseURL string
	SunoModel   string

	MusicPollInitialDelay time.Duration
	MusicPollInterval     time.Duration
	MusicPollMaxAttempts  int

	EmailVerificationEnabled bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
	DefaultLocale    string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		BackendURL:      getEnv("BACKEND_URL", "http://localhost:5000"),
		ComicServiceURL: getEnv("COMIC_SERVICE_URL", "http://localhost:5001"),

		GroqAPIKeys: splitKeys(os.Getenv("GROQ_API_KEY")),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com"),
		SunoAPIKeys: splitKeys(os.Getenv("SUNO_API_KEY")),
		SunoBaseURL: getEnv("SUNO_BASE_URL", "https://api.sunoapi.org"),
		SunoModel:   getEnv("SUNO_MODEL", "V3_5"),

		MusicPollInitialDelay: time.Second * time.Duration(getEnvInt("MUSIC_POLL_INITIAL_SECONDS", 30)),
		MusicPollInterval:     time.Second * time.Duration(getEnvInt("MUSIC_POLL_INTERVAL_SECONDS", 30)),
		MusicPollMaxAttempts:  getEnvInt("MUSIC_POLL_MAX_ATTEMPTS", 30),

		EmailVerificationEnabled: getEnvBool("EMAIL_VERIFICATION_ENABLED", false),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:   splitKeys(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// CallbackURL returns the absolute URL the music provider should post
// completion callbacks to.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.BackendURL, "/") + "/api/dreams/suno-callback"
}

func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
