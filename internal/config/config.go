// Package config provides centralized configuration management for the inbox service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Inbox    InboxConfig
	Storage  StorageConfig
	Lock     LockConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Monitor  MonitorConfig
	Mastodon MastodonConfig
	Mail     MailConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request including the photo body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing the response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// InboxConfig holds moderation settings.
type InboxConfig struct {
	// BaseURL prefixes the inbox file URLs handed to clients and admins
	BaseURL string `env:"INBOX_BASE_URL" default:"https://api.railway-stations.org/inbox"`

	// NearbyRadiusKm is the distance under which two coordinates count as the same place (default: 0.5)
	NearbyRadiusKm float64 `env:"NEARBY_RADIUS_KM" default:"0.5"`
}

// StorageConfig holds photo storage settings.
type StorageConfig struct {
	// Backend selects the photo storage: file or s3 (default: file)
	Backend string `env:"STORAGE_BACKEND" default:"file"`

	// WorkDir is the root of the file backend layout (default: /var/rsapi)
	WorkDir string `env:"STORAGE_WORK_DIR" default:"/var/rsapi"`

	// MaxUploadSize is the maximum accepted photo size in bytes (default: 20MB)
	MaxUploadSize int64 `env:"STORAGE_MAX_UPLOAD_SIZE" default:"20000000"`

	// MaxConcurrent is the number of storage operations allowed in parallel (default: 4)
	MaxConcurrent int `env:"STORAGE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a storage slot (default: 10s)
	MaxWaitTime time.Duration `env:"STORAGE_MAX_WAIT_TIME" default:"10s"`

	// KeepCopiesDays is how long done and rejected copies are kept (default: 60)
	KeepCopiesDays int `env:"STORAGE_KEEP_COPIES_DAYS" default:"60"`

	// S3Bucket is the bucket used when Backend is s3
	S3Bucket string `env:"S3_BUCKET"`

	// S3Region overrides the AWS region from the environment
	S3Region string `env:"S3_REGION"`

	// S3Prefix is prepended to every object key
	S3Prefix string `env:"S3_PREFIX"`
}

// LockConfig selects how admin commands on one inbox entry are serialized.
type LockConfig struct {
	// Backend is local (single instance) or redis (default: local)
	Backend string `env:"LOCK_BACKEND" default:"local"`

	// RedisAddr is the Redis address used when Backend is redis
	RedisAddr string `env:"REDIS_ADDR" default:"localhost:6379"`

	// TTL bounds how long a crashed holder keeps an entry locked (default: 30s)
	TTL time.Duration `env:"LOCK_TTL" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for photo uploads (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// JWTSecret verifies HS256 bearer tokens issued by the auth server
	JWTSecret string `env:"JWT_SECRET"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// MonitorConfig configures where operator notifications go.
// With an empty AMQPURL notifications are only logged.
type MonitorConfig struct {
	AMQPURL    string `env:"AMQP_URL"`
	Exchange   string `env:"AMQP_EXCHANGE" default:"rsapi-monitor"`
	RoutingKey string `env:"AMQP_ROUTING_KEY" default:"inbox"`
}

// MastodonConfig configures the social bot. It is disabled when any value is blank.
type MastodonConfig struct {
	InstanceURL string `env:"MASTODON_INSTANCE_URL"`
	Token       string `env:"MASTODON_TOKEN"`
	StationURL  string `env:"MASTODON_STATION_URL" default:"https://map.railway-stations.org/station.php"`
}

// MailConfig configures review-result mails. Notifications are skipped without an API key.
type MailConfig struct {
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	FromName       string `env:"MAIL_FROM_NAME" default:"Railway-Stations"`
	FromEmail      string `env:"MAIL_FROM_EMAIL" default:"info@railway-stations.org"`
}

// JobsConfig holds background job intervals.
type JobsConfig struct {
	// NotifyInterval is how often photographers are mailed about reviewed entries (default: 1h)
	NotifyInterval time.Duration `env:"JOBS_NOTIFY_INTERVAL" default:"1h"`

	// CleanupInterval is how often old done and rejected copies are purged (default: 24h)
	CleanupInterval time.Duration `env:"JOBS_CLEANUP_INTERVAL" default:"24h"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// MastodonEnabled reports whether all social bot settings are present.
func (c *Config) MastodonEnabled() bool {
	return c.Mastodon.InstanceURL != "" && c.Mastodon.Token != "" && c.Mastodon.StationURL != ""
}

// KeepCopies returns the retention of done and rejected copies as a duration.
func (c *StorageConfig) KeepCopies() time.Duration {
	return time.Duration(c.KeepCopiesDays) * 24 * time.Hour
}
