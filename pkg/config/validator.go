package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidateConfig 验证完整的配置
func (c *Config) ValidateConfig() error {
	if c.App != nil {
		switch strings.ToLower(c.App.LogLevel) {
		case "", "debug", "info", "warn", "warning", "error", "fatal":
		default:
			return fmt.Errorf("%w: log_level %q", ErrInvalidValue, c.App.LogLevel)
		}
	}

	if err := c.validateBrowserConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrBrowserConfig, err)
	}

	if err := c.validateSessionConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionConfig, err)
	}

	if err := c.validateAPIConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrAPIConfig, err)
	}

	if err := c.validateProxyConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyConfig, err)
	}

	if err := c.validateServerConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerConfig, err)
	}

	if err := c.validateKeepAliveConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrKeepAliveConfig, err)
	}

	return nil
}

func (c *Config) validateBrowserConfig() error {
	b := c.Browser
	if b == nil {
		return nil
	}

	if b.WindowWidth < 0 || b.WindowHeight < 0 {
		return fmt.Errorf("%w: window size must not be negative", ErrInvalidValue)
	}
	if b.LaunchTimeout < 0 || b.ActionTimeout < 0 || b.ProbeTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidValue)
	}
	if b.WarmupURL != "" {
		if err := validateURL(b.WarmupURL); err != nil {
			return fmt.Errorf("warmup_url: %w", err)
		}
	}
	for _, u := range b.CookieURLs {
		if err := validateURL(u); err != nil {
			return fmt.Errorf("cookie_urls: %w", err)
		}
	}
	return nil
}

func (c *Config) validateSessionConfig() error {
	s := c.Session
	if s == nil {
		return fmt.Errorf("%w: session配置不能为空", ErrMissingRequired)
	}

	if s.MaxCaptchaAttempts <= 0 {
		return fmt.Errorf("%w: max_captcha_attempts必须大于0", ErrInvalidValue)
	}
	if strings.TrimSpace(s.CookiesFile) == "" {
		return fmt.Errorf("%w: cookies_file", ErrMissingRequired)
	}
	return nil
}

func (c *Config) validateAPIConfig() error {
	a := c.API
	if a == nil {
		return fmt.Errorf("%w: api配置不能为空", ErrMissingRequired)
	}

	if err := validateURL(a.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if a.AppKey == "" {
		return fmt.Errorf("%w: app_key", ErrMissingRequired)
	}
	if a.Transport != "" && a.Transport != "tls" && a.Transport != "http" {
		return fmt.Errorf("%w: transport必须是'tls'或'http'", ErrInvalidValue)
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout必须大于0", ErrInvalidValue)
	}
	if a.RateLimit < 0 || a.Burst < 0 || a.CacheSize < 0 || a.CacheTTL < 0 {
		return fmt.Errorf("%w: rate_limit, burst and cache settings must not be negative", ErrInvalidValue)
	}
	if a.MaxAttempts < 0 {
		return fmt.Errorf("%w: max_attempts must not be negative", ErrInvalidValue)
	}
	if a.Locale.Lang == "" || a.Locale.Currency == "" || a.Locale.Country == "" {
		return fmt.Errorf("%w: locale lang, currency and country", ErrMissingRequired)
	}
	return nil
}

func (c *Config) validateProxyConfig() error {
	p := c.Proxy
	if p == nil || !p.Enabled {
		return nil
	}

	if !p.Complete() {
		return fmt.Errorf("%w: OXYLABS_USERNAME, OXYLABS_PASSWORD and OXYLABS_ENDPOINT", ErrMissingRequired)
	}
	if strings.Contains(p.Endpoint, "://") {
		return fmt.Errorf("%w: endpoint must be host:port", ErrInvalidValue)
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	s := c.Server
	if s == nil {
		return nil
	}

	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port必须在1-65535范围内", ErrInvalidValue)
	}
	return nil
}

func (c *Config) validateKeepAliveConfig() error {
	k := c.KeepAlive
	if k == nil || !k.Enabled {
		return nil
	}

	if _, err := cron.ParseStandard(k.Cron); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCron, k.Cron, err)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidValue, raw)
	}
	return nil
}
