// Package config provides configuration loading and validation for the
// tracktime bot. Values come from defaults, an optional config.yaml, and
// BOT_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Redmine   RedmineConfig   `mapstructure:"redmine"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  Messages        `mapstructure:"messages"`
}

// TelegramConfig holds the Telegram bot settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// RedmineConfig holds the Redmine connection settings.
type RedmineConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=5m"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ProxyConfig holds optional outbound proxy settings. When URL is empty no
// proxy is used.
type ProxyConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// SchedulerConfig holds the scheduled task settings. Cron specs use the
// standard five-field format.
type SchedulerConfig struct {
	FleetSyncCron      string        `mapstructure:"fleet_sync_cron"      validate:"required"`
	FleetSyncStagger   time.Duration `mapstructure:"fleet_sync_stagger"   validate:"min=1s"`
	SQLMaintenanceCron string        `mapstructure:"sql_maintenance_cron" validate:"required"`
}

// Messages holds all user-visible message strings.
type Messages struct {
	Welcome        string `mapstructure:"welcome"          validate:"required"`
	Help           string `mapstructure:"help"             validate:"required"`
	AskAuthKey     string `mapstructure:"ask_auth_key"     validate:"required"`
	InvalidAuthKey string `mapstructure:"invalid_auth_key" validate:"required"`
	AuthKeySaved   string `mapstructure:"auth_key_saved"   validate:"required"`
	NotRegistered  string `mapstructure:"not_registered"   validate:"required"`
	TrackIntro     string `mapstructure:"track_intro"      validate:"required"`
	AskSpentOn     string `mapstructure:"ask_spent_on"     validate:"required"`
	AskIssue       string `mapstructure:"ask_issue"        validate:"required"`
	NoIssues       string `mapstructure:"no_issues"        validate:"required"`
	AskComments    string `mapstructure:"ask_comments"     validate:"required"`
	AskHours       string `mapstructure:"ask_hours"        validate:"required"`
	EntrySaved     string `mapstructure:"entry_saved"      validate:"required"`
	EntryFailed    string `mapstructure:"entry_failed"     validate:"required"`
	Cancelled      string `mapstructure:"cancelled"        validate:"required"`
	GeneralError   string `mapstructure:"general_error"    validate:"required"`
}

// Load reads configuration from defaults, an optional config.yaml, and the
// environment, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file is optional; defaults plus environment are enough.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a real default still need to be registered so that
	// AutomaticEnv can populate them during Unmarshal.
	v.SetDefault("telegram.token", "")

	v.SetDefault("redmine.base_url", "")
	v.SetDefault("redmine.timeout", 30*time.Second)

	v.SetDefault("proxy.url", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")

	v.SetDefault("database.path", "tracktime.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scheduler.fleet_sync_cron", "0 3 * * *")
	v.SetDefault("scheduler.fleet_sync_stagger", time.Minute)
	v.SetDefault("scheduler.sql_maintenance_cron", "30 4 * * 0")

	v.SetDefault("messages.welcome", "For help use /help, to track time use /track.")
	v.SetDefault("messages.help", "/start registers you or replaces your Redmine API key, /track walks you through logging a time entry step by step, /cancel aborts an entry in progress.")
	v.SetDefault("messages.ask_auth_key", "Hi! Before the bot can help you it needs your Redmine API key. You can find it on your Redmine account page. Please send it now.")
	v.SetDefault("messages.invalid_auth_key", "That key was rejected by Redmine. Use /start to try again.")
	v.SetDefault("messages.auth_key_saved", "Your Redmine connection settings were saved.")
	v.SetDefault("messages.not_registered", "I don't have a Redmine API key for you yet. Use /start to set one up.")
	v.SetDefault("messages.track_intro", "Let's log some time. Tell me where it goes.")
	v.SetDefault("messages.ask_spent_on", "Pick the day the time was spent on, or bail out with /cancel.")
	v.SetDefault("messages.ask_issue", "Pick the issue to log time against, or bail out with /cancel.")
	v.SetDefault("messages.no_issues", "I don't know any of your issues yet. Log time through Redmine once so I can pick up your recent issues, then try /track again.")
	v.SetDefault("messages.ask_comments", "Write a comment for the entry, or bail out with /cancel.")
	v.SetDefault("messages.ask_hours", "Tap to add hours. Done appears once there is something to save. /cancel bails out.")
	v.SetDefault("messages.entry_saved", "Saved to Redmine:")
	v.SetDefault("messages.entry_failed", "Redmine rejected the entry, nothing was saved. Start over with /track.")
	v.SetDefault("messages.cancelled", "Okay, entry dropped. Try again whenever you like.")
	v.SetDefault("messages.general_error", "Something went wrong. Please try again later.")
}
