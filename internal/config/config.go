// Package config loads bot configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

func init() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
}

type Config struct {
	// Bot identity
	BotName string `env:"PLANNERBOT_NAME" envDefault:"plannerbot"`

	// Conversation behavior
	StopKeywords     []string      `env:"PLANNERBOT_STOP_KEYWORDS" envSeparator:"," envDefault:"cancel,stop,forget,don't worry,restart,start again"`
	HelpKeywords     []string      `env:"PLANNERBOT_HELP_KEYWORDS" envSeparator:"," envDefault:"help,help me,support"`
	IdleTimeout      time.Duration `env:"PLANNERBOT_IDLE_TIMEOUT" envDefault:"5m"`
	SweepInterval    time.Duration `env:"PLANNERBOT_SWEEP_INTERVAL" envDefault:"1m"`
	RemoteTimeout    time.Duration `env:"PLANNERBOT_REMOTE_TIMEOUT" envDefault:"30s"`
	NotifyOnExpiry   bool          `env:"PLANNERBOT_NOTIFY_ON_EXPIRY" envDefault:"true"`
	DebugAllMessages bool          `env:"PLANNERBOT_DEBUG_ALL_MESSAGES" envDefault:"false"`

	// Text analysis service
	TextAnalysisURL    string `env:"TEXT_ANALYSIS_URL,required,notEmpty"`
	TextAnalysisAPIKey string `env:"TEXT_ANALYSIS_API_KEY"`

	// Telegram
	TelegramAppID       int    `env:"TELEGRAM_APP_ID"`
	TelegramAppHash     string `env:"TELEGRAM_APP_HASH"`
	TelegramPhone       string `env:"TELEGRAM_PHONE"`
	TelegramSessionFile string `env:"TELEGRAM_SESSION_FILE" envDefault:"./telegram-session.json"`

	// WhatsApp
	WhatsAppEnabled bool   `env:"WHATSAPP_ENABLED" envDefault:"false"`
	WhatsAppDBPath  string `env:"WHATSAPP_DB_PATH" envDefault:"./whatsapp.db"`

	// Google Calendar
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"./credentials.json"`
	GoogleTokenFile       string `env:"GOOGLE_TOKEN_FILE" envDefault:"./token.json"`
	GoogleCalendarID      string `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`

	// Daily digest
	DigestCronSpec string `env:"DIGEST_CRON_SPEC" envDefault:"0 9 * * 1-5"`
	DigestChannel  string `env:"DIGEST_CHANNEL"`
	DigestTimezone string `env:"DIGEST_TIMEZONE" envDefault:"Local"`

	// HTTP server
	HTTPPort int `env:"PLANNERBOT_HTTP_PORT" envDefault:"8080"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// DigestLocation resolves the digest timezone, falling back to local time.
func (c *Config) DigestLocation() *time.Location {
	if c.DigestTimezone == "" || c.DigestTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.DigestTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
