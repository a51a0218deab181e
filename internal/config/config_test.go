package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "fs", cfg.BlobBackend)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "Owner", cfg.OwnerName)
	assert.False(t, cfg.CookieSecure)
	assert.False(t, cfg.TrustProxy)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NOTEDROP_ADDR", ":8080")
	t.Setenv("NOTEDROP_DATABASE_DRIVER", "pgx")
	t.Setenv("NOTEDROP_DATABASE_URL", "postgres://u:p@localhost/notes")
	t.Setenv("NOTEDROP_SESSION_TTL", "2h")
	t.Setenv("NOTEDROP_OWNER_NAME", "Avi")
	t.Setenv("NOTEDROP_COOKIE_SECURE", "true")
	t.Setenv("NOTEDROP_TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "pgx", cfg.DatabaseDriver)
	assert.Equal(t, "postgres://u:p@localhost/notes", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "Avi", cfg.OwnerName)
	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("NOTEDROP_OTP_TTL", "ten minutes")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Addr:             ":3000",
		DatabaseDriver:   "mysql",
		DatabaseURL:      "x",
		BlobBackend:      "minio",
		MaxUploadBytes:   0,
		SessionTTL:       time.Hour,
		OTPTTL:           time.Minute,
		LoginMaxAttempts: 5,
		LockoutDuration:  time.Minute,
		LogLevel:         "info",
		LogFormat:        "text",
	}

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"DATABASE_DRIVER", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "BUCKET", "MAX_UPLOAD_BYTES",
	}, fields)
	assert.Contains(t, err.Error(), "NOTEDROP_BUCKET")
}
