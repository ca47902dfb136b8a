package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.Pause)
	assert.Equal(t, "0 3 25 * *", cfg.Draft.Spec)
	assert.Empty(t, cfg.Telegram.Token)
	assert.False(t, cfg.IsProduction())
}

func TestLoadPrefixedSections(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("TELEGRAM_CHAT_ID", "-100500")
	t.Setenv("REDIS_TTL", "1m")
	t.Setenv("DRAFT_TEAMS", "default,运维组")
	t.Setenv("ENGINE_PAUSE", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, int64(-100500), cfg.Telegram.ChatID)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"default", "运维组"}, cfg.Draft.Teams)
	assert.Zero(t, cfg.Engine.Pause)
}

func TestLoadRejectsBadValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
