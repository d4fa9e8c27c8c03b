package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv. Empty values count as unset.
// All missing required variables are reported together.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	l := envLoader{getenv: getenv}
	l.load(reflect.ValueOf(cfg).Elem())
	if len(l.missing) > 0 {
		l.errs = append(l.errs, fmt.Errorf("required environment variables not set: %s", strings.Join(l.missing, ", ")))
	}
	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

type envLoader struct {
	getenv  func(string) string
	missing []string
	errs    []error
}

var durationType = reflect.TypeOf(time.Duration(0))

// load walks the struct tree and fills every field carrying an env tag.
func (l *envLoader) load(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			l.load(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value := l.getenv(name)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = l.getenv(alt)
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				l.missing = append(l.missing, name)
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := assign(fv, value); err != nil {
			l.errs = append(l.errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}
}

// assign parses value into the field according to the field's type.
func assign(fv reflect.Value, value string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem().Kind())
		}
		fv.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Kind())
	}
	return nil
}

// splitList splits a comma separated list, dropping blank items.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Inbox validation
	if c.Inbox.NearbyRadiusKm <= 0 {
		errs = append(errs, "NEARBY_RADIUS_KM must be positive")
	}
	if c.Inbox.BaseURL == "" {
		errs = append(errs, "INBOX_BASE_URL is required")
	}

	// Storage validation
	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if c.Storage.WorkDir == "" {
			errs = append(errs, "STORAGE_WORK_DIR is required for the file backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, "S3_BUCKET is required for the s3 backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND (%q) must be one of: file, s3", c.Storage.Backend))
	}
	if c.Storage.MaxUploadSize <= 0 {
		errs = append(errs, "STORAGE_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Storage.MaxConcurrent <= 0 {
		errs = append(errs, "STORAGE_MAX_CONCURRENT must be positive")
	}
	if c.Storage.MaxWaitTime <= 0 {
		errs = append(errs, "STORAGE_MAX_WAIT_TIME must be positive")
	}
	if c.Storage.KeepCopiesDays <= 0 {
		errs = append(errs, "STORAGE_KEEP_COPIES_DAYS must be positive")
	}

	// Lock validation
	switch strings.ToLower(c.Lock.Backend) {
	case "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required for the redis lock backend")
		}
		if c.Lock.TTL <= 0 {
			errs = append(errs, "LOCK_TTL must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("LOCK_BACKEND (%q) must be one of: local, redis", c.Lock.Backend))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Security validation
	if len(c.Security.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}

	// Jobs validation
	if c.Jobs.NotifyInterval <= 0 {
		errs = append(errs, "JOBS_NOTIFY_INTERVAL must be positive")
	}
	if c.Jobs.CleanupInterval <= 0 {
		errs = append(errs, "JOBS_CLEANUP_INTERVAL must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and tokens are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Inbox: {BaseURL: %q, NearbyRadiusKm: %g}, ",
		c.Inbox.BaseURL, c.Inbox.NearbyRadiusKm))
	b.WriteString(fmt.Sprintf("Storage: {Backend: %q, MaxUploadSize: %d, MaxConcurrent: %d}, ",
		c.Storage.Backend, c.Storage.MaxUploadSize, c.Storage.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Lock: {Backend: %q}, ", c.Lock.Backend))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {JWTSecret: [MASKED]}, Mastodon: {Enabled: %v, Token: [MASKED]}, ",
		c.MastodonEnabled()))
	b.WriteString(fmt.Sprintf("Mail: {Enabled: %v}, ", c.Mail.SendGridAPIKey != ""))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
