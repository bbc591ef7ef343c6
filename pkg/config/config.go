package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for mtopctl.
type Config struct {
	App       *AppConfig       `json:"app" yaml:"app"`
	Browser   *BrowserConfig   `json:"browser" yaml:"browser"`
	Session   *SessionConfig   `json:"session" yaml:"session"`
	API       *APIConfig       `json:"api" yaml:"api"`
	Proxy     *ProxyConfig     `json:"proxy" yaml:"proxy"`
	Server    *ServerConfig    `json:"server" yaml:"server"`
	KeepAlive *KeepAliveConfig `json:"keepalive" yaml:"keepalive"`
}

// getDefaultConfig returns a config where every section carries its defaults.
func getDefaultConfig() *Config {
	return &Config{
		App:       NewAppConfig(),
		Browser:   NewBrowserConfig(),
		Session:   NewSessionConfig(),
		API:       NewAPIConfig(),
		Proxy:     NewProxyConfig(),
		Server:    NewServerConfig(),
		KeepAlive: NewKeepAliveConfig(),
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return getDefaultConfig()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue := parseIntOrDefault(value, defaultValue); intValue != defaultValue {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func parseIntOrDefault(s string, defaultValue int) int {
	if len(s) == 0 {
		return defaultValue
	}

	result := 0
	for _, char := range s {
		if char < '0' || char > '9' {
			return defaultValue
		}
		result = result*10 + int(char-'0')
	}
	return result
}

// parseStringList splits a comma separated list and drops empty items.
func parseStringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
