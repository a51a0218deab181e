// Package config loads notedrop settings from NOTEDROP_* environment
// variables and validates them before the server starts.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "NOTEDROP_"

// Config holds every runtime setting. Defaults suit a single-host install:
// a SQLite file and an uploads directory next to the binary.
type Config struct {
	Addr    string `env:"ADDR" envDefault:":3000"`
	Version string `env:"VERSION" envDefault:"dev"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"data/notedrop.db"`

	BlobBackend string `env:"BLOB_BACKEND" envDefault:"fs"`
	UploadDir   string `env:"UPLOAD_DIR" envDefault:"uploads"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	Bucket      string `env:"BUCKET"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	OTPTTL       time.Duration `env:"OTP_TTL" envDefault:"10m"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	OwnerName    string        `env:"OWNER_NAME" envDefault:"Owner"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`

	FormRateLimit  int           `env:"FORM_RATE_LIMIT" envDefault:"30"`
	FormRateWindow time.Duration `env:"FORM_RATE_WINDOW" envDefault:"1m"`
	TrustProxy     bool          `env:"TRUST_PROXY" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once rather than failing on the first.
func (c *Config) Validate() error {
	v := &validator{}

	v.required("ADDR", c.Addr)
	v.oneOf("DATABASE_DRIVER", c.DatabaseDriver, "sqlite", "pgx")
	v.required("DATABASE_URL", c.DatabaseURL)
	v.oneOf("BLOB_BACKEND", c.BlobBackend, "fs", "minio")
	switch c.BlobBackend {
	case "fs":
		v.required("UPLOAD_DIR", c.UploadDir)
	case "minio":
		v.required("S3_ENDPOINT", c.S3Endpoint)
		v.required("S3_ACCESS_KEY", c.S3AccessKey)
		v.required("S3_SECRET_KEY", c.S3SecretKey)
		v.required("BUCKET", c.Bucket)
	}
	if c.MaxUploadBytes <= 0 {
		v.add("MAX_UPLOAD_BYTES", "must be positive")
	}
	if c.SessionTTL <= 0 {
		v.add("SESSION_TTL", "must be positive")
	}
	if c.OTPTTL <= 0 {
		v.add("OTP_TTL", "must be positive")
	}
	if c.LoginMaxAttempts <= 0 {
		v.add("LOGIN_MAX_ATTEMPTS", "must be positive")
	}
	if c.LockoutDuration <= 0 {
		v.add("LOCKOUT_DURATION", "must be positive")
	}
	if c.FormRateLimit < 0 {
		v.add("FORM_RATE_LIMIT", "must not be negative")
	}
	if c.FormRateLimit > 0 && c.FormRateWindow <= 0 {
		v.add("FORM_RATE_WINDOW", "must be positive")
	}
	v.oneOf("LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error")
	v.oneOf("LOG_FORMAT", c.LogFormat, "text", "json")

	return v.err()
}
