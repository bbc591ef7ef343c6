package config

import "errors"

// Configuration-related error definitions using sentinel errors pattern
var (
	// Generic errors
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidFormat  = errors.New("invalid configuration file format")

	// Configuration validation errors
	ErrMissingRequired = errors.New("missing required configuration item")
	ErrInvalidValue    = errors.New("invalid configuration value")

	// Section errors
	ErrBrowserConfig   = errors.New("browser configuration error")
	ErrSessionConfig   = errors.New("session configuration error")
	ErrAPIConfig       = errors.New("API configuration error")
	ErrProxyConfig     = errors.New("proxy configuration error")
	ErrServerConfig    = errors.New("server configuration error")
	ErrKeepAliveConfig = errors.New("keep-alive configuration error")
	ErrInvalidCron     = errors.New("invalid Cron expression")
)
