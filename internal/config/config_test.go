package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Mailbox.PollInterval)
	assert.Equal(t, int64(100_000_000), cfg.Mailbox.AttachmentRules.MaxBytes)
	assert.Equal(t, []string{"image/", "video/"}, cfg.Mailbox.AttachmentRules.AllowedMimePrefixes)
	assert.Equal(t, []string{"pdf", "doc", "docx", "xls", "xlsx"}, cfg.Mailbox.AttachmentRules.AllowedExtensions)
	assert.Equal(t, int64(2_000_000), cfg.Mailbox.LogoRules.MaxBytes)
	assert.Empty(t, cfg.Database.Type, "memory store by default")
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONOGEST_SERVER_PORT", "9090")
	t.Setenv("MONOGEST_MAILBOX_POLL_INTERVAL", "45s")
	t.Setenv("MONOGEST_CORS_ALLOWED_ORIGINS", "https://app.monogest.ar, https://staff.monogest.ar")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Mailbox.PollInterval)
	assert.Equal(t, []string{"https://app.monogest.ar", "https://staff.monogest.ar"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("rejects sub-second poll interval", func(t *testing.T) {
		t.Setenv("MONOGEST_MAILBOX_POLL_INTERVAL", "100ms")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects short jwt secret", func(t *testing.T) {
		t.Setenv("MONOGEST_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown database type", func(t *testing.T) {
		t.Setenv("MONOGEST_DATABASE_TYPE", "oracle")
		t.Setenv("MONOGEST_DATABASE_DSN", "whatever")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("requires dsn with database type", func(t *testing.T) {
		t.Setenv("MONOGEST_DATABASE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})
}
