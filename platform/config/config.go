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

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// ClientTokenConfig provides settings for the end-customer portal tokens.
type ClientTokenConfig interface {
	GetClientTokenSecret() string
	GetClientTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CognitoConfig provides settings for the AWS Cognito user pool that
// authenticates back-office staff.
type CognitoConfig interface {
	GetCognitoRegion() string
	GetCognitoUserPoolID() string
	GetCognitoClientID() string
	IsCognitoEnabled() bool
}

// LineConfig provides settings for the LINE Messaging API push channel.
type LineConfig interface {
	GetLineChannelAccessToken() string
	GetLineChannelID() string
	IsLineEnabled() bool
}

// StripeConfig provides settings for the Stripe payment gateway.
type StripeConfig interface {
	GetStripeSecretKey() string
	GetStripeWebhookSecret() string
	GetAppBaseURL() string
	IsStripeEnabled() bool
}

// CaseConfig provides workflow policy settings for the cases module.
type CaseConfig interface {
	// GetAssignOnCreate reports whether creating a case with a handyman
	// already attached should start the case in ASSIGNED instead of PENDING.
	GetAssignOnCreate() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	AccessTokenTTL         time.Duration
	ClientTokenSecret      string
	ClientTokenTTL         time.Duration
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	AppBaseURL             string
	CognitoRegion          string
	CognitoUserPoolID      string
	CognitoClientID        string
	LineChannelAccessToken string
	LineChannelID          string
	StripeSecretKey        string
	StripeWebhookSecret    string
	CaseAssignOnCreate     bool
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// ClientTokenConfig implementation
func (c *Config) GetClientTokenSecret() string      { return c.ClientTokenSecret }
func (c *Config) GetClientTokenTTL() time.Duration  { return c.ClientTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// CognitoConfig implementation
func (c *Config) GetCognitoRegion() string     { return c.CognitoRegion }
func (c *Config) GetCognitoUserPoolID() string { return c.CognitoUserPoolID }
func (c *Config) GetCognitoClientID() string   { return c.CognitoClientID }
func (c *Config) IsCognitoEnabled() bool {
	return c.CognitoRegion != "" && c.CognitoUserPoolID != "" && c.CognitoClientID != ""
}

// LineConfig implementation
func (c *Config) GetLineChannelAccessToken() string { return c.LineChannelAccessToken }
func (c *Config) GetLineChannelID() string          { return c.LineChannelID }
func (c *Config) IsLineEnabled() bool               { return c.LineChannelAccessToken != "" }

// StripeConfig implementation
func (c *Config) GetStripeSecretKey() string     { return c.StripeSecretKey }
func (c *Config) GetStripeWebhookSecret() string { return c.StripeWebhookSecret }
func (c *Config) GetAppBaseURL() string          { return c.AppBaseURL }
func (c *Config) IsStripeEnabled() bool          { return c.StripeSecretKey != "" }

// CaseConfig implementation
func (c *Config) GetAssignOnCreate() bool { return c.CaseAssignOnCreate }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:         mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		ClientTokenSecret:      getEnv("CLIENT_TOKEN_SECRET", ""),
		ClientTokenTTL:         mustDuration(getEnv("CLIENT_TOKEN_TTL", "15m")),
		CORSAllowAll:           strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:            splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:             getEnv("APP_BASE_URL", "http://localhost:3000"),
		CognitoRegion:          getEnv("COGNITO_REGION", ""),
		CognitoUserPoolID:      getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:        getEnv("COGNITO_CLIENT_ID", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelID:          getEnv("LINE_CHANNEL_ID", ""),
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CaseAssignOnCreate:     strings.EqualFold(getEnv("CASE_ASSIGN_ON_CREATE", "false"), "true"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "notifications"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
	}

	if containsWildcard(cfg.CORSOrigins) {
		cfg.CORSAllowAll = true
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ClientTokenSecret == "" {
		// The client portal must never fall back to the staff signing key.
		return nil, fmt.Errorf("CLIENT_TOKEN_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
