// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port       string
	DBPath     string
	HistoryDir string
	ExportDir  string
	KeyFile    string

	Session SessionConfig
	LLM     LLMConfig
	Auth    AuthConfig

	Retention RetentionConfig
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	MaxMessages   int
	Timeout       time.Duration
	SweepInterval time.Duration
}

// LLMConfig points at the upstream model vendor.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AuthConfig controls API-key enforcement on the gateway surface.
type AuthConfig struct {
	Required bool
}

// RetentionConfig controls the scheduled maintenance jobs.
type RetentionConfig struct {
	ConversationDays int
	WakeEventDays    int
	BackupCron       string
	CleanupCron      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		DBPath:     getEnv("DB_PATH", "./data/conversations.db"),
		HistoryDir: getEnv("HISTORY_DIR", "./data/history"),
		ExportDir:  getEnv("EXPORT_DIR", "./data/exports"),
		KeyFile:    getEnv("API_KEY_FILE", "./data/api_keys.json"),
		Session: SessionConfig{
			MaxMessages:   getEnvInt("SESSION_MAX_MESSAGES", 20),
			Timeout:       time.Duration(getEnvInt("SESSION_TIMEOUT_SECONDS", 3600)) * time.Second,
			SweepInterval: time.Duration(getEnvInt("SESSION_SWEEP_SECONDS", 60)) * time.Second,
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
			Model:   getEnv("LLM_MODEL", "qwen-turbo"),
			Timeout: time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Auth: AuthConfig{
			Required: getEnvBool("AUTH_REQUIRED", false),
		},
		Retention: RetentionConfig{
			ConversationDays: getEnvInt("RETENTION_CONVERSATION_DAYS", 30),
			WakeEventDays:    getEnvInt("RETENTION_WAKE_EVENT_DAYS", 30),
			BackupCron:       getEnv("BACKUP_CRON", "0 3 * * *"),
			CleanupCron:      getEnv("CLEANUP_CRON", "30 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HistoryDir == "" {
		return fmt.Errorf("HISTORY_DIR cannot be empty")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("EXPORT_DIR cannot be empty")
	}
	if c.Session.MaxMessages <= 0 {
		return fmt.Errorf("SESSION_MAX_MESSAGES must be > 0")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_SECONDS must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_SECONDS must be > 0")
	}
	if c.Retention.ConversationDays <= 0 {
		return fmt.Errorf("RETENTION_CONVERSATION_DAYS must be > 0")
	}
	if c.Retention.WakeEventDays <= 0 {
		return fmt.Errorf("RETENTION_WAKE_EVENT_DAYS must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
