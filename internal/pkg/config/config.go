// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"telegram-member-export/internal/domain"
)

// Server содержит конфигурацию HTTP-сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// TelegramAPIServer содержит конфигурацию одного аккаунта Telegram API
type TelegramAPIServer struct {
	APIID       int    `json:"api_id" yaml:"api_id"`
	APIHash     string `json:"api_hash" yaml:"api_hash"`
	PhoneNumber string `json:"phone_number" yaml:"phone_number"`
	SessionFile string `json:"session_file" yaml:"session_file"`
}

// TelegramAPI содержит конфигурацию Telegram API
type TelegramAPI struct {
	// Для обратной совместимости. Используйте Servers.
	APIID       int    `json:"api_id,omitempty" yaml:"api_id,omitempty"`
	APIHash     string `json:"api_hash,omitempty" yaml:"api_hash,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	SessionFile string `json:"session_file,omitempty" yaml:"session_file,omitempty"`

	// Новый формат для нескольких аккаунтов
	Servers []TelegramAPIServer `json:"servers" yaml:"servers"`

	HealthCheckIntervalSeconds int `json:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`
}

// Export содержит параметры выгрузки по умолчанию
type Export struct {
	Mode         string `json:"mode" yaml:"mode"`                   // member или admin
	HistoryLimit int    `json:"history_limit" yaml:"history_limit"` // сколько сообщений сканируется для активности
	OutputDir    string `json:"output_dir" yaml:"output_dir"`
	Format       string `json:"format" yaml:"format"` // csv или xlsx
}

// Processing содержит конфигурацию обработки задач
type Processing struct {
	TaskTimeoutSeconds      int `json:"task_timeout_seconds" yaml:"task_timeout_seconds"` // 0 - без ограничений
	ResolutionTTLMinutes    int `json:"resolution_ttl_minutes" yaml:"resolution_ttl_minutes"`
	CleanupIntervalMinutes  int `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
	PreviewDebounceMillisec int `json:"preview_debounce_ms" yaml:"preview_debounce_ms"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Server      Server      `json:"server" yaml:"server"`
	TelegramAPI TelegramAPI `json:"telegram_api" yaml:"telegram_api"`
	Export      Export      `json:"export" yaml:"export"`
	Processing  Processing  `json:"processing" yaml:"processing"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// GetTelegramServers возвращает список конфигураций аккаунтов Telegram,
// обеспечивая обратную совместимость со старым форматом.
func (c *Config) GetTelegramServers() []TelegramAPIServer {
	if len(c.TelegramAPI.Servers) > 0 {
		return c.TelegramAPI.Servers
	}
	// Поддержка старого формата из корневого объекта telegram_api
	if c.TelegramAPI.APIID != 0 && c.TelegramAPI.APIHash != "" {
		return []TelegramAPIServer{
			{
				APIID:       c.TelegramAPI.APIID,
				APIHash:     c.TelegramAPI.APIHash,
				PhoneNumber: c.TelegramAPI.PhoneNumber,
				SessionFile: c.TelegramAPI.SessionFile,
			},
		}
	}
	return nil
}

// HealthCheckInterval возвращает интервал проверки здоровья клиентов.
func (c *Config) HealthCheckInterval() time.Duration {
	if c.TelegramAPI.HealthCheckIntervalSeconds <= 0 {
		return DefaultHealthCheckInterval
	}
	return time.Duration(c.TelegramAPI.HealthCheckIntervalSeconds) * time.Second
}

// ResolutionTTL возвращает срок жизни закешированных разрешений чатов.
func (c *Config) ResolutionTTL() time.Duration {
	if c.Processing.ResolutionTTLMinutes <= 0 {
		return DefaultResolutionTTL
	}
	return time.Duration(c.Processing.ResolutionTTLMinutes) * time.Minute
}

// CleanupInterval возвращает период фоновой очистки кешей и задач.
func (c *Config) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return DefaultCleanupInterval
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// ExportMode возвращает режим выгрузки по умолчанию.
func (c *Config) ExportMode() domain.ExportMode {
	mode := domain.ExportMode(c.Export.Mode)
	if !mode.Valid() {
		return domain.ModeMember
	}
	return mode
}

// HistoryLimit возвращает лимит скана истории по умолчанию.
func (c *Config) HistoryLimit() int {
	if c.Export.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return c.Export.HistoryLimit
}

// LoadConfig загружает конфигурацию приложения из переменных окружения, .env файла или config.yml
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Если .env файла не существует, это нормально, мы будем полагаться на переменные окружения или config.yml
	}

	// Попытка загрузки из config.yml сначала
	cfg, err := loadFromYAML("config.yml")
	if err != nil {
		// Если загрузка YAML не удалась, используем переменные окружения
		cfg, err = loadFromEnv()
		if err != nil {
			return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
		}
	}

	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения (обратная совместимость)
func loadFromEnv() (*Config, error) {
	apiIDStr := getEnv("API_ID", "")
	apiHash := getEnv("API_HASH", "")
	phoneNumber := getEnv("PHONE_NUMBER", "")
	sessionFile := getEnv("SESSION_FILE", "tg.session")
	host := getEnv("SERVER_HOST", DefaultServerHost)
	portStr := getEnv("SERVER_PORT", strconv.Itoa(DefaultServerPort))
	historyLimitStr := getEnv("HISTORY_LIMIT", strconv.Itoa(DefaultHistoryLimit))
	mode := getEnv("EXPORT_MODE", DefaultExportMode)
	outputDir := getEnv("OUTPUT_DIR", DefaultOutputDir)
	format := getEnv("EXPORT_FORMAT", DefaultExportFormat)

	if apiIDStr == "" || apiHash == "" || phoneNumber == "" {
		return nil, fmt.Errorf("API_ID, API_HASH и PHONE_NUMBER должны быть установлены в переменных окружения")
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый API_ID: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый SERVER_PORT: %w", err)
	}

	historyLimit, err := strconv.Atoi(historyLimitStr)
	if err != nil {
		return nil, fmt.Errorf("недопустимый HISTORY_LIMIT: %w", err)
	}

	cfg := &Config{
		Server: Server{
			Host: host,
			Port: port,
		},
		TelegramAPI: TelegramAPI{
			APIID:       apiID,
			APIHash:     apiHash,
			PhoneNumber: phoneNumber,
			SessionFile: sessionFile,
		},
		Export: Export{
			Mode:         mode,
			HistoryLimit: historyLimit,
			OutputDir:    outputDir,
			Format:       format,
		},
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
	if cfg.Export.Mode == "" {
		cfg.Export.Mode = DefaultExportMode
	}
	if cfg.Export.HistoryLimit == 0 {
		cfg.Export.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = DefaultOutputDir
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = DefaultExportFormat
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	servers := c.GetTelegramServers()
	if len(servers) == 0 {
		return fmt.Errorf("конфигурация telegram_api не найдена или пуста")
	}

	for i, s := range servers {
		if s.APIID <= 0 {
			return fmt.Errorf("telegram_api.servers[%d].api_id должно быть положительным целым числом", i)
		}
		if s.APIHash == "" {
			return fmt.Errorf("telegram_api.servers[%d].api_hash не может быть пустым", i)
		}
		if s.PhoneNumber == "" {
			return fmt.Errorf("telegram_api.servers[%d].phone_number не может быть пустым", i)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if !domain.ExportMode(c.Export.Mode).Valid() {
		return fmt.Errorf("export.mode должен быть member или admin")
	}

	if c.Export.HistoryLimit <= 0 {
		return fmt.Errorf("export.history_limit должно быть положительным")
	}

	switch c.Export.Format {
	case "csv", "xlsx":
		// all good
	default:
		return fmt.Errorf("export.format должен быть csv или xlsx")
	}

	if c.Processing.TaskTimeoutSeconds < 0 {
		return fmt.Errorf("processing.task_timeout_seconds должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
