// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetTeamNotifyEmail() string
}

// SquareConfig provides settings for the Square invoicing provider.
type SquareConfig interface {
	GetSquareBaseURL() string
	GetSquareAccessToken() string
	GetSquareLocationID() string
	IsSquareEnabled() bool
}

// IdentityConfig provides settings for the external identity provider
// (client portal logins).
type IdentityConfig interface {
	GetIdentityAdminURL() string
	GetIdentityServiceKey() string
	IsIdentityEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetStaleLeadThreshold() time.Duration
}

// AIConfig provides settings for the follow-up drafting model.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetDraftModel() string
	IsDraftingEnabled() bool
}

// =============================================================================
// Concrete Config
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	AppBaseURL      string
	TeamNotifyEmail string

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	SquareBaseURL     string
	SquareAccessToken string
	SquareLocationID  string

	IdentityAdminURL   string
	IdentityServiceKey string

	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	StaleLeadThreshold time.Duration

	GeminiAPIKey string
	DraftModel   string
}

// Load reads configuration from the environment, with .env support for
// local development. Only the database URL is mandatory; integrations
// degrade to disabled when their settings are absent.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTAccessSecret:    getEnv("JWT_ACCESS_SECRET", "dev-access-secret"),
		CORSAllowAll:       getEnvBool("CORS_ALLOW_ALL", false),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CORSAllowCreds:     getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		AppBaseURL:         getEnv("APP_BASE_URL", "http://localhost:3000"),
		TeamNotifyEmail:    os.Getenv("TEAM_NOTIFY_EMAIL"),
		EmailEnabled:       getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Agency CRM"),
		EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", "noreply@localhost"),
		SquareBaseURL:      getEnv("SQUARE_BASE_URL", "https://connect.squareup.com"),
		SquareAccessToken:  os.Getenv("SQUARE_ACCESS_TOKEN"),
		SquareLocationID:   os.Getenv("SQUARE_LOCATION_ID"),
		IdentityAdminURL:   os.Getenv("IDENTITY_ADMIN_URL"),
		IdentityServiceKey: os.Getenv("IDENTITY_SERVICE_KEY"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "default"),
		StaleLeadThreshold: getEnvDuration("STALE_LEAD_THRESHOLD", 7*24*time.Hour),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		DraftModel:         getEnv("DRAFT_MODEL", "gemini-2.0-flash"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// Interface implementations

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

func (c *Config) GetAppBaseURL() string      { return c.AppBaseURL }
func (c *Config) GetTeamNotifyEmail() string { return c.TeamNotifyEmail }

func (c *Config) GetSquareBaseURL() string     { return c.SquareBaseURL }
func (c *Config) GetSquareAccessToken() string { return c.SquareAccessToken }
func (c *Config) GetSquareLocationID() string  { return c.SquareLocationID }
func (c *Config) IsSquareEnabled() bool        { return c.SquareAccessToken != "" }

func (c *Config) GetIdentityAdminURL() string   { return c.IdentityAdminURL }
func (c *Config) GetIdentityServiceKey() string { return c.IdentityServiceKey }
func (c *Config) IsIdentityEnabled() bool {
	return c.IdentityAdminURL != "" && c.IdentityServiceKey != ""
}

func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetStaleLeadThreshold() time.Duration { return c.StaleLeadThreshold }

func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetDraftModel() string   { return c.DraftModel }
func (c *Config) IsDraftingEnabled() bool { return c.GeminiAPIKey != "" }

// Env helpers

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
