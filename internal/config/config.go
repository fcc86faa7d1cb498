package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Server  ServerConfig
	Slack   SlackConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type ServerConfig struct {
	Port           string
	UploadMaxBytes int64
}

type SlackConfig struct {
	BotToken    string
	ChannelID   string
	APIBaseURL  string
	HTTPTimeout time.Duration
	DryRun      bool
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (Config, error) {
	// Load .env file if it exists (ignore error for production where env vars are set directly)
	_ = godotenv.Load()

	cfg := Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "slackpost"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "9060"),
			UploadMaxBytes: int64(getInt("UPLOAD_MAX_BYTES", 32<<20)),
		},
		Slack: SlackConfig{
			BotToken:    strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")),
			ChannelID:   strings.TrimSpace(os.Getenv("SLACK_CHANNEL_ID")),
			APIBaseURL:  getEnv("SLACK_API_BASE_URL", "https://slack.com/api/"),
			HTTPTimeout: getDuration("SLACK_HTTP_TIMEOUT", 30*time.Second),
			DryRun:      getBool("SLACK_DRY_RUN", false),
		},
		Metrics: MetricsConfig{
			Enabled: getBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Slack.HTTPTimeout < 0 {
		return Config{}, fmt.Errorf("SLACK_HTTP_TIMEOUT cannot be negative")
	}
	if cfg.Server.UploadMaxBytes <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES must be greater than 0")
	}

	return cfg, nil
}

// RequireCredentials checks that a default token and channel are configured.
// The CLI has no other source for them.
func (c SlackConfig) RequireCredentials() error {
	if c.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("SLACK_CHANNEL_ID is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
