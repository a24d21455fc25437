package config

// Defaults for optional bot settings.
const (
	DefaultPollingIntervalSeconds = 3
	DefaultHTTPTimeoutSeconds     = 30
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
)
