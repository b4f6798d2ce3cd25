package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	TelegramBotToken string
	AdminID          int64

	// Channel the user must be subscribed to, either "@username" or a numeric chat id
	ChannelID  string
	ChannelURL string

	LLMProvider     string
	LLMEndpoint     string
	LLMToken        string
	LLMModel        string
	LLMVisionModel  string
	LLMTextTimeout  time.Duration
	LLMImageTimeout time.Duration
	ReplyLanguage   string

	PostgreDSN string
	SQLitePath string

	LogLevel string
	LogDir   string

	HealthPort      string
	WorkerCount     int
	WorkerQueueSize int
}

// Load reads an optional .env file and then the process environment.
// TELEGRAM_BOT_TOKEN is required.
func Load() (*Config, error) {
	return load(true)
}

// LoadStoreOnly is Load for commands that only touch the user store, where
// TELEGRAM_BOT_TOKEN may be unset.
func LoadStoreOnly() (*Config, error) {
	return load(false)
}

func load(requireBotToken bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChannelID:        getEnvOrDefault("CHANNEL_ID", "@TepthonHelp"),
		ChannelURL:       os.Getenv("CHANNEL_URL"),
		LLMProvider:      strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		LLMEndpoint:      strings.TrimRight(getEnvOrDefault("LLM_ENDPOINT", "https://api.openai.com/v1"), "/"),
		LLMToken:         os.Getenv("LLM_TOKEN"),
		LLMModel:         getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMVisionModel:   os.Getenv("LLM_VISION_MODEL"),
		ReplyLanguage:    getEnvOrDefault("REPLY_LANGUAGE", "Arabic"),
		PostgreDSN:       os.Getenv("POSTGRE_DSN"),
		SQLitePath:       getEnvOrDefault("SQLITE_PATH", "bot_data.db"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:           getEnvOrDefault("LOG_DIR", "logs"),
		HealthPort:       getEnvOrDefault("HEALTH_PORT", "8080"),
	}

	var err error
	if cfg.AdminID, err = getInt64("ADMIN_ID", 0); err != nil {
		return nil, err
	}
	if cfg.LLMTextTimeout, err = getDuration("LLM_TEXT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMImageTimeout, err = getDuration("LLM_IMAGE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	workers, err := getInt64("WORKER_COUNT", 8)
	if err != nil {
		return nil, err
	}
	queueSize, err := getInt64("WORKER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	cfg.WorkerCount = int(workers)
	cfg.WorkerQueueSize = int(queueSize)

	if cfg.LLMVisionModel == "" {
		cfg.LLMVisionModel = cfg.LLMModel
	}
	if cfg.ChannelURL == "" {
		cfg.ChannelURL = channelURLFromID(cfg.ChannelID)
	}

	if err := cfg.validate(requireBotToken); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate(requireBotToken bool) error {
	if requireBotToken && c.TelegramBotToken == "" {
		return fmt.Errorf("required environment variable TELEGRAM_BOT_TOKEN is not set")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID must not be empty")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.WorkerQueueSize <= 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be positive, got %d", c.WorkerQueueSize)
	}
	return nil
}

func (c *Config) HasLLMConfig() bool {
	if c.LLMToken == "" || c.LLMModel == "" {
		return false
	}
	if c.LLMProvider == "gemini" {
		return true
	}
	return c.LLMEndpoint != ""
}

func (c *Config) HasDatabaseConfig() bool {
	return c.PostgreDSN != ""
}

func (c *Config) HasAdmin() bool {
	return c.AdminID != 0
}

func (c *Config) IsAdmin(userID int64) bool {
	return c.HasAdmin() && userID == c.AdminID
}

// DatabaseDriver returns the sql driver name and DSN for the user store.
func (c *Config) DatabaseDriver() (driver, dsn string) {
	if c.HasDatabaseConfig() {
		return DriverPostgres, c.PostgreDSN
	}
	return DriverSQLite, c.SQLitePath
}

// channelURLFromID turns "@name" into a t.me link. Numeric ids have no public link.
func channelURLFromID(channelID string) string {
	if strings.HasPrefix(channelID, "@") {
		return "https://t.me/" + strings.TrimPrefix(channelID, "@")
	}
	return ""
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
