package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TELEGRAM_TOKEN", "123456:test-token")
	t.Setenv("BOT_REDMINE_BASE_URL", "https://redmine.example.com")
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123456:test-token", cfg.Telegram.Token)
	assert.Equal(t, "https://redmine.example.com", cfg.Redmine.BaseURL)

	// Everything else falls back to defaults.
	assert.Equal(t, 30*time.Second, cfg.Redmine.Timeout)
	assert.Equal(t, "tracktime.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.FleetSyncCron)
	assert.Equal(t, time.Minute, cfg.Scheduler.FleetSyncStagger)
	assert.Equal(t, "30 4 * * 0", cfg.Scheduler.SQLMaintenanceCron)
	assert.Empty(t, cfg.Proxy.URL)
	assert.NotEmpty(t, cfg.Messages.Welcome)
	assert.NotEmpty(t, cfg.Messages.AskHours)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_LOG_LEVEL", "debug")
	t.Setenv("BOT_DATABASE_PATH", "/var/lib/bot/data.db")
	t.Setenv("BOT_MESSAGES_WELCOME", "Hello there")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/bot/data.db", cfg.Database.Path)
	assert.Equal(t, "Hello there", cfg.Messages.Welcome)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing telegram token",
			env:  map[string]string{"BOT_REDMINE_BASE_URL": "https://redmine.example.com"},
		},
		{
			name: "missing redmine base url",
			env:  map[string]string{"BOT_TELEGRAM_TOKEN": "123456:test-token"},
		},
		{
			name: "base url is not a url",
			env: map[string]string{
				"BOT_TELEGRAM_TOKEN":   "123456:test-token",
				"BOT_REDMINE_BASE_URL": "not a url",
			},
		},
		{
			name: "bad log level",
			env: map[string]string{
				"BOT_TELEGRAM_TOKEN":   "123456:test-token",
				"BOT_REDMINE_BASE_URL": "https://redmine.example.com",
				"BOT_LOG_LEVEL":        "loud",
			},
		},
		{
			name: "bad proxy url",
			env: map[string]string{
				"BOT_TELEGRAM_TOKEN":   "123456:test-token",
				"BOT_REDMINE_BASE_URL": "https://redmine.example.com",
				"BOT_PROXY_URL":        "::not-a-url::",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
