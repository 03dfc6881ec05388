package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("GIN_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "drop", cfg.Comments.OrphanPolicy)
	assert.Equal(t, 500, cfg.Cache.Size)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.False(t, cfg.Mail.Enabled())
	assert.False(t, cfg.GitHub.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COMMENT_ORPHAN_POLICY", "promote")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USER", "u")
	t.Setenv("SMTP_PASS", "p")
	t.Setenv("SMTP_FROM", "nest@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "promote", cfg.Comments.OrphanPolicy)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Mail.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown orphan policy", func(t *testing.T) {
		t.Setenv("COMMENT_ORPHAN_POLICY", "keep")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("release mode needs a secret", func(t *testing.T) {
		t.Setenv("GIN_MODE", "release")
		t.Setenv("SESSION_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("cache size must be positive", func(t *testing.T) {
		t.Setenv("CACHE_SIZE", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
