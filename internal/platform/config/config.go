// Package config loads application configuration from environment variables.
// All variables use the ARANDU_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Database DatabaseConfig
	Cache    CacheConfig
	AI       AIConfig
	Auth     AuthConfig
	Session  SessionConfig
	Notify   NotifyConfig
	Log      LogConfig
	Routes   RoutesConfig
	// FixturePath, when set, serves upstream data from YAML files in this
	// directory instead of the REST backend.
	FixturePath string
	Dev         bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig holds the upstream REST API settings.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps the
// activity log in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables
// Redis-backed sessions, course caching and notification fan-out.
type CacheConfig struct {
	URL       string
	CourseTTL time.Duration
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI     OpenAIConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Timeout    time.Duration
	// DailyTokenBudget is the per-user token allowance. Zero means unlimited.
	DailyTokenBudget int
	TenantID         string
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
	Model  string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// SessionConfig holds session storage settings.
type SessionConfig struct {
	TTL   time.Duration
	Store string // "memory" or "redis"
}

// NotifyConfig holds live notification settings.
type NotifyConfig struct {
	Channel     string
	RecentLimit int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// RoutesConfig holds front-end routes the gateway redirects to.
type RoutesConfig struct {
	Login string
}

// Load reads configuration from environment variables with ARANDU_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("ARANDU_SERVER_PORT", 8080),
			Host:            envStr("ARANDU_SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     envDuration("ARANDU_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    envDuration("ARANDU_SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: envDuration("ARANDU_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			URL:     envStr("ARANDU_BACKEND_URL", "http://localhost:3001/api-v1"),
			Timeout: envDuration("ARANDU_BACKEND_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("ARANDU_DATABASE_URL", ""),
			MaxConns: envInt("ARANDU_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("ARANDU_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL:       envStr("ARANDU_CACHE_URL", ""),
			CourseTTL: envDuration("ARANDU_CACHE_COURSE_TTL", time.Minute),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("ARANDU_AI_OPENAI_API_KEY", ""),
				Model:  envStr("ARANDU_AI_OPENAI_MODEL", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("ARANDU_AI_OPENROUTER_API_KEY", ""),
				Model:  envStr("ARANDU_AI_OPENROUTER_MODEL", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("ARANDU_AI_OLLAMA_ENABLED", false),
				URL:     envStr("ARANDU_AI_OLLAMA_URL", "http://localhost:11434/v1"),
				Model:   envStr("ARANDU_AI_OLLAMA_MODEL", ""),
			},
			Timeout:          envDuration("ARANDU_AI_TIMEOUT", 30*time.Second),
			DailyTokenBudget: envInt("ARANDU_AI_DAILY_TOKEN_BUDGET", 0),
			TenantID:         envStr("ARANDU_AI_TENANT_ID", "default"),
		},
		Auth: AuthConfig{
			JWTSecret: envStr("ARANDU_AUTH_JWT_SECRET", "change-me-in-production"),
			Issuer:    envStr("ARANDU_AUTH_ISSUER", "arandu-gateway"),
		},
		Session: SessionConfig{
			TTL:   envDuration("ARANDU_SESSION_TTL", 24*time.Hour),
			Store: envStr("ARANDU_SESSION_STORE", "memory"),
		},
		Notify: NotifyConfig{
			Channel:     envStr("ARANDU_NOTIFY_CHANNEL", "arandu:notifications"),
			RecentLimit: envInt("ARANDU_NOTIFY_RECENT_LIMIT", 50),
		},
		Log: LogConfig{
			Level:  envStr("ARANDU_LOG_LEVEL", "info"),
			Format: envStr("ARANDU_LOG_FORMAT", "json"),
		},
		Routes: RoutesConfig{
			Login: envStr("ARANDU_ROUTES_LOGIN", "/auth/login"),
		},
		FixturePath: envStr("ARANDU_FIXTURE_PATH", ""),
		Dev:         envBool("ARANDU_DEV", false),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.FixturePath == "" && c.Backend.URL == "" {
		return fmt.Errorf("ARANDU_BACKEND_URL is required unless ARANDU_FIXTURE_PATH is set")
	}

	if !c.Dev && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("ARANDU_AUTH_JWT_SECRET must be at least 32 bytes outside dev mode")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("ARANDU_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Cache.URL == "" {
			return fmt.Errorf("ARANDU_SESSION_STORE=redis requires ARANDU_CACHE_URL")
		}
	default:
		return fmt.Errorf("ARANDU_SESSION_STORE must be 'memory' or 'redis', got %q", c.Session.Store)
	}

	for name, d := range map[string]time.Duration{
		"ARANDU_BACKEND_TIMEOUT": c.Backend.Timeout,
		"ARANDU_AI_TIMEOUT":      c.AI.Timeout,
		"ARANDU_SESSION_TTL":     c.Session.TTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envDuration accepts Go duration strings ("30s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
