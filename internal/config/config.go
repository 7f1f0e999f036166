package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	BusinessTimezone   string
	SalonLocation      string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MetricsEnabled     bool

	// Primary booking store
	StoreBackend  string
	DatabaseURL   string
	BookingsTable string
	StoreTimeout  time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	IdempotencyTTL time.Duration

	// ERP (Odoo JSON-RPC)
	ERPURL          string
	ERPDatabase     string
	ERPUser         string
	ERPPassword     string
	ERPTimeout      time.Duration
	ERPMaxRetries   int
	ERPRetryBackoff time.Duration
	ERPCatalogFile  string

	// Notifications
	NotifyTimeout            time.Duration
	SMSProvider              string
	UltraMsgToken            string
	UltraMsgInstanceID       string
	UltraMsgAPIURL           string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TelnyxFromNumber         string
	EmailProvider            string
	SendGridAPIKey           string
	SendGridFromEmail        string
	SendGridFromName         string
	SESFromEmail             string
	SESConfigurationSet      string
	EmailReplyTo             string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Phase-2 reconciliation
	SyncMode          string
	SyncQueueURL      string
	SyncWorkerCount   int
	SyncMaxAttempts   int
	SyncSweepEnabled  bool
	SyncSweepInterval time.Duration
	SyncSweepWindow   time.Duration
	FailedSyncBucket  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", "Africa/Dar_es_Salaam"),
		SalonLocation:      getEnv("SALON_LOCATION", "Stephan's Pet Store, Dar es Salaam"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),

		StoreBackend:  strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		BookingsTable: getEnv("BOOKINGS_TABLE", "grooming_bookings"),
		StoreTimeout:  getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		ERPURL:          getEnv("ERP_URL", ""),
		ERPDatabase:     getEnv("ERP_DB", ""),
		ERPUser:         getEnv("ERP_USER", ""),
		ERPPassword:     getEnv("ERP_PASSWORD", ""),
		ERPTimeout:      getEnvAsDuration("ERP_TIMEOUT", 5*time.Second),
		ERPMaxRetries:   max(getEnvAsInt("ERP_MAX_RETRIES", 0), 0),
		ERPRetryBackoff: getEnvAsDuration("ERP_RETRY_BACKOFF", 250*time.Millisecond),
		ERPCatalogFile:  getEnv("ERP_CATALOG_FILE", ""),

		NotifyTimeout:            getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second),
		SMSProvider:              strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		UltraMsgToken:            getEnv("ULTRAMSG_TOKEN", ""),
		UltraMsgInstanceID:       getEnv("ULTRAMSG_INSTANCE_ID", ""),
		UltraMsgAPIURL:           getEnv("ULTRAMSG_API_URL", "https://api.ultramsg.com"),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxFromNumber:         getEnv("TELNYX_FROM_NUMBER", ""),
		EmailProvider:            strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:           getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:        getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:         getEnv("SENDGRID_FROM_NAME", "Pet Grooming"),
		SESFromEmail:             getEnv("SES_FROM_EMAIL", ""),
		SESConfigurationSet:      getEnv("SES_CONFIGURATION_SET", ""),
		EmailReplyTo:             getEnv("EMAIL_REPLY_TO", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SyncMode:          strings.ToLower(strings.TrimSpace(getEnv("SYNC_MODE", "inline"))),
		SyncQueueURL:      getEnv("SYNC_QUEUE_URL", ""),
		SyncWorkerCount:   getEnvAsInt("SYNC_WORKER_COUNT", 2),
		SyncMaxAttempts:   getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),
		SyncSweepEnabled:  getEnvAsBool("SYNC_SWEEP_ENABLED", false),
		SyncSweepInterval: getEnvAsDuration("SYNC_SWEEP_INTERVAL", 15*time.Minute),
		SyncSweepWindow:   getEnvAsDuration("SYNC_SWEEP_WINDOW", 72*time.Hour),
		FailedSyncBucket:  getEnv("FAILED_SYNC_BUCKET", ""),
	}
}

// ERPConfigured reports whether enough ERP credentials exist to build a client.
func (c *Config) ERPConfigured() bool {
	return c != nil && c.ERPURL != "" && c.ERPDatabase != "" && c.ERPUser != "" && c.ERPPassword != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
