package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost             = "0.0.0.0"
	DefaultServerPort             = 8080
	DefaultShutdownTimeoutSeconds = 15

	// Export defaults
	DefaultExportMode   = "member"
	DefaultHistoryLimit = 2000
	DefaultOutputDir    = "exports"
	DefaultExportFormat = "xlsx"

	// Processing defaults
	DefaultResolutionTTL   = 10 * time.Minute
	DefaultCleanupInterval = 1 * time.Hour

	// Telegram API defaults
	DefaultHealthCheckInterval = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
