package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the quotes bot.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	Timezone string `mapstructure:"timezone" validate:"required"`

	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Offers    OffersConfig    `mapstructure:"offers"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-user flood protection on the Telegram
// transport.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// RateLimitRule is one limit/window pair.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// Mode selects the update delivery mechanism: "polling" or "webhook".
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
	// GroupChatID receives a copy of every accepted purchase offer.
	GroupChatID int64 `mapstructure:"group_chat_id"`
	// StaleAfter drops inbound updates older than this bound before they
	// reach the conversation engine.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ServerConfig configures the ops HTTP server (health and metrics).
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL record store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig configures the Redis connection shared by the broadcast
// scheduler and the idempotency store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggerConfig configures structured logging output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated file output in addition to stdout.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// OffersConfig configures the purchase offer gates and the daily cap.
type OffersConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	DailyLimit int  `mapstructure:"daily_limit" validate:"gte=1"`
	// Business hours in the configured timezone; offers outside the
	// [StartHour, EndHour) range are rejected.
	StartHour    int    `mapstructure:"start_hour" validate:"gte=0,lte=23"`
	EndHour      int    `mapstructure:"end_hour" validate:"gte=1,lte=24"`
	HolidaysFile string `mapstructure:"holidays_file"`
}

// BroadcastConfig configures the minute-cadence schedule dispatcher.
type BroadcastConfig struct {
	// DefaultWindow applies when a schedule entry carries no window length.
	DefaultWindow time.Duration `mapstructure:"default_window"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}
