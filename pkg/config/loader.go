package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从指定路径加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 如果配置文件不存在，返回默认配置
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}

	config := getDefaultConfig()
	ext := filepath.Ext(configPath)

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: JSON parsing failed: %v", ErrInvalidFormat, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: YAML parsing failed: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config file format: %s", ErrInvalidFormat, ext)
	}

	mergeEnvVars(config)
	return config, nil
}

// SaveConfig 保存配置到指定路径
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	ext := filepath.Ext(configPath)
	var data []byte
	var err error

	switch ext {
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		return fmt.Errorf("%w: unsupported config file format: %s", ErrInvalidFormat, ext)
	}

	if err != nil {
		return fmt.Errorf("config serialization failed: %w", err)
	}

	// 配置可能包含代理密码
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	// 优先级：当前目录 > 用户配置目录 > 系统配置目录
	paths := []string{
		"./config.yaml",
		"./config.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".aliscan", "config.yaml"),
			filepath.Join(homeDir, ".aliscan", "config.json"),
		)
	}

	paths = append(paths,
		"/etc/aliscan/config.yaml",
		"/etc/aliscan/config.json",
	)

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "./config.yaml"
}

// mergeEnvVars 将环境变量合并到配置中
func mergeEnvVars(config *Config) {
	mergeAppEnvVars(config)
	mergeBrowserEnvVars(config)
	mergeSessionEnvVars(config)
	mergeAPIEnvVars(config)
	mergeProxyEnvVars(config)
	mergeServerEnvVars(config)
	mergeKeepAliveEnvVars(config)
}

// applyEnv copies set environment variables onto string and int fields.
func applyEnv(envMappings map[string]interface{}) {
	for envKey, fieldPtr := range envMappings {
		value := os.Getenv(envKey)
		if value == "" {
			continue
		}
		switch ptr := fieldPtr.(type) {
		case *int:
			if intVal := parseIntOrDefault(value, 0); intVal != 0 {
				*ptr = intVal
			}
		case *float64:
			*ptr = getEnvFloat(envKey, *ptr)
		case *string:
			*ptr = value
		case *bool:
			*ptr = value == "true" || value == "1"
		}
	}
}

func mergeAppEnvVars(config *Config) {
	if config.App == nil {
		config.App = NewAppConfig()
		return
	}
	applyEnv(map[string]interface{}{
		"LOG_LEVEL": &config.App.LogLevel,
		"LOG_FILE":  &config.App.LogFile,
		"APP_ENV":   &config.App.Environment,
	})
}

func mergeBrowserEnvVars(config *Config) {
	if config.Browser == nil {
		config.Browser = NewBrowserConfig()
		return
	}
	b := config.Browser
	applyEnv(map[string]interface{}{
		"BROWSER_HEADLESS":       &b.Headless,
		"CHROME_PATH":            &b.ChromePath,
		"BROWSER_USER_AGENT":     &b.UserAgent,
		"BROWSER_WINDOW_WIDTH":   &b.WindowWidth,
		"BROWSER_WINDOW_HEIGHT":  &b.WindowHeight,
		"BROWSER_LAUNCH_TIMEOUT": &b.LaunchTimeout,
		"BROWSER_ACTION_TIMEOUT": &b.ActionTimeout,
		"BROWSER_PROBE_TIMEOUT":  &b.ProbeTimeout,
		"BROWSER_WARMUP_URL":     &b.WarmupURL,
	})
	if urls := os.Getenv("BROWSER_COOKIE_URLS"); urls != "" {
		b.CookieURLs = parseStringList(urls)
	}
}

func mergeSessionEnvVars(config *Config) {
	if config.Session == nil {
		config.Session = NewSessionConfig()
		return
	}
	applyEnv(map[string]interface{}{
		"SESSION_MAX_CAPTCHA_ATTEMPTS": &config.Session.MaxCaptchaAttempts,
		"SESSION_COOKIES_FILE":         &config.Session.CookiesFile,
	})
}

func mergeAPIEnvVars(config *Config) {
	if config.API == nil {
		config.API = NewAPIConfig()
		return
	}
	a := config.API
	applyEnv(map[string]interface{}{
		"MTOP_BASE_URL":        &a.BaseURL,
		"MTOP_APP_KEY":         &a.AppKey,
		"MTOP_JSV":             &a.JSV,
		"MTOP_CALLBACK":        &a.Callback,
		"MTOP_REQUEST_TIMEOUT": &a.RequestTimeout,
		"MTOP_TRANSPORT":       &a.Transport,
		"MTOP_TLS_PROFILE":     &a.TLSProfile,
		"MTOP_RATE_LIMIT":      &a.RateLimit,
		"MTOP_BURST":           &a.Burst,
		"MTOP_MAX_ATTEMPTS":    &a.MaxAttempts,
		"MTOP_CACHE_SIZE":      &a.CacheSize,
		"MTOP_CACHE_TTL":       &a.CacheTTL,
	})
}

// mergeProxyEnvVars lets OXYLABS_* credentials from the environment or a .env
// file override whatever the config file holds.
func mergeProxyEnvVars(config *Config) {
	if config.Proxy == nil {
		config.Proxy = NewProxyConfig()
		return
	}
	p := config.Proxy
	applyEnv(map[string]interface{}{
		"OXYLABS_USERNAME": &p.Username,
		"OXYLABS_PASSWORD": &p.Password,
		"OXYLABS_ENDPOINT": &p.Endpoint,
		"PROXY_ENABLED":    &p.Enabled,
	})
}

func mergeServerEnvVars(config *Config) {
	if config.Server == nil {
		config.Server = NewServerConfig()
		return
	}
	applyEnv(map[string]interface{}{
		"SERVER_PORT":    &config.Server.Port,
		"SERVER_ADDRESS": &config.Server.Address,
	})
}

func mergeKeepAliveEnvVars(config *Config) {
	if config.KeepAlive == nil {
		config.KeepAlive = NewKeepAliveConfig()
		return
	}
	applyEnv(map[string]interface{}{
		"KEEPALIVE_ENABLED": &config.KeepAlive.Enabled,
		"KEEPALIVE_CRON":    &config.KeepAlive.Cron,
	})
}
