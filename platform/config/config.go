// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
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

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// CookieConfig provides settings for refresh token cookies.
type CookieConfig interface {
	GetRefreshCookieName() string
	GetRefreshCookieDomain() string
	GetRefreshCookiePath() string
	GetRefreshCookieSecure() bool
	GetRefreshCookieSameSite() http.SameSite
	GetRefreshTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SMTPConfig provides settings for outbound notification email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	GetSMTPFromAddress() string
	IsEmailEnabled() bool
}

// LeadPolicyConfig provides lead lifecycle policy settings.
type LeadPolicyConfig interface {
	GetLeadPhoneUniqueness() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// PhoneUniquenessGlobal enforces phone uniqueness across all leads.
const PhoneUniquenessGlobal = "global"

// PhoneUniquenessPerAgent enforces phone uniqueness only among leads
// assigned to the same agent.
const PhoneUniquenessPerAgent = "per_agent"

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	JWTAccessSecret     string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RefreshCookieName   string
	RefreshCookieDomain string
	RefreshCookiePath   string
	RefreshCookieSecure bool
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	AppBaseURL          string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPFromName        string
	SMTPFromAddress     string
	LeadPhoneUniqueness string
}

// Load reads configuration from the environment, loading .env first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTAccessSecret:     os.Getenv("JWT_ACCESS_SECRET"),
		AccessTokenTTL:      getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:     getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshCookieName:   getEnv("REFRESH_COOKIE_NAME", "crm_refresh"),
		RefreshCookieDomain: os.Getenv("REFRESH_COOKIE_DOMAIN"),
		RefreshCookiePath:   getEnv("REFRESH_COOKIE_PATH", "/api/v1/auth"),
		RefreshCookieSecure: getBool("REFRESH_COOKIE_SECURE", true),
		CORSAllowAll:        getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:         splitCSV(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds:      getBool("CORS_ALLOW_CREDENTIALS", true),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:3000"),
		RedisURL:            os.Getenv("REDIS_URL"),
		RedisTLSInsecure:    getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    getInt("ASYNQ_CONCURRENCY", 10),
		EmailEnabled:        getBool("EMAIL_ENABLED", false),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getInt("SMTP_PORT", 587),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:        getEnv("SMTP_FROM_NAME", "Estate CRM"),
		SMTPFromAddress:     os.Getenv("SMTP_FROM_ADDRESS"),
		LeadPhoneUniqueness: getEnv("LEAD_PHONE_UNIQUENESS", PhoneUniquenessGlobal),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.LeadPhoneUniqueness != PhoneUniquenessGlobal && cfg.LeadPhoneUniqueness != PhoneUniquenessPerAgent {
		return nil, fmt.Errorf("LEAD_PHONE_UNIQUENESS must be %q or %q", PhoneUniquenessGlobal, PhoneUniquenessPerAgent)
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c *Config) GetRefreshCookieName() string   { return c.RefreshCookieName }
func (c *Config) GetRefreshCookieDomain() string { return c.RefreshCookieDomain }
func (c *Config) GetRefreshCookiePath() string   { return c.RefreshCookiePath }
func (c *Config) GetRefreshCookieSecure() bool   { return c.RefreshCookieSecure }
func (c *Config) GetRefreshCookieSameSite() http.SameSite {
	if c.RefreshCookieSecure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }
func (c *Config) GetAppBaseURL() string     { return c.AppBaseURL }
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string    { return c.SMTPFromName }
func (c *Config) GetSMTPFromAddress() string { return c.SMTPFromAddress }
func (c *Config) IsEmailEnabled() bool       { return c.EmailEnabled }

func (c *Config) GetLeadPhoneUniqueness() string { return c.LeadPhoneUniqueness }

// Helpers.

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
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

func getInt(key string, fallback int) int {
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

func getDuration(key string, fallback time.Duration) time.Duration {
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
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
