package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token                  string `yaml:"token"`
	BackendURL             string `yaml:"backend_url"`
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
	HTTPTimeoutSeconds     int    `yaml:"http_timeout_seconds"`
}

// LoggingConfig содержит настройки логирования бота.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
func LoadBotConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
	}

	// Устанавливаем значения по умолчанию
	if cfg.Bot.PollingIntervalSeconds == 0 {
		cfg.Bot.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if cfg.Bot.HTTPTimeoutSeconds == 0 {
		cfg.Bot.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	return &cfg, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *Config) Validate() error {
	if c.Bot.Token == "" || c.Bot.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.Bot.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.Bot.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.Bot.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("bot.http_timeout_seconds must be positive")
	}
	return nil
}
