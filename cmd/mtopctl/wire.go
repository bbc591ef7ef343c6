package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aliscan/pkg/aliexpress"
	"aliscan/pkg/browser"
	"aliscan/pkg/config"
	"aliscan/pkg/cookiestore"
	"aliscan/pkg/logger"
	"aliscan/pkg/metrics"
	"aliscan/pkg/mtop"
	"aliscan/pkg/session"
	"aliscan/pkg/transport"
)

// runtime is the object graph shared by every command.
type runtime struct {
	cfg     *config.Config
	ctrl    *session.Controller
	client  *aliexpress.Client
	metrics *metrics.Metrics
}

func browserOptions(cfg *config.Config) browser.Options {
	b := cfg.Browser
	opts := browser.Options{
		Headless:      b.Headless,
		ChromePath:    b.ChromePath,
		UserAgent:     b.UserAgent,
		WindowWidth:   b.WindowWidth,
		WindowHeight:  b.WindowHeight,
		LaunchTimeout: b.LaunchTimeoutDuration(),
		ActionTimeout: b.ActionTimeoutDuration(),
		CookieURLs:    b.CookieURLs,
		WaitCookie:    mtop.TokenCookie,
	}
	if cfg.Proxy.Active() {
		opts.Proxy = &browser.Proxy{
			Server:   cfg.Proxy.Server(),
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		}
	}
	return opts
}

func transportOptions(cfg *config.Config) transport.Options {
	return transport.Options{
		Kind:     cfg.API.Transport,
		Timeout:  cfg.API.RequestTimeoutDuration(),
		ProxyURL: cfg.Proxy.URL(),
		Profile:  cfg.API.TLSProfile,
	}
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	m := metrics.New()

	store := cookiestore.New(cfg.Session.CookiesFile)
	monitor := session.NewMonitor(cfg.Session.MaxCaptchaAttempts, cfg.Browser.ProbeTimeoutDuration())
	ctrl := session.NewController(
		browser.NewChromeLauncher(browserOptions(cfg)),
		store,
		monitor,
		session.ControllerOptions{
			WarmupURL: cfg.Browser.WarmupURL,
			ProxyUsed: cfg.Proxy.Active(),
		},
	)

	tr, err := transport.New(transportOptions(cfg))
	if err != nil {
		return nil, err
	}

	opts := cfg.API.Options()
	opts.Metrics = m
	client := aliexpress.New(ctrl, tr, opts)

	logger.Info("Client ready",
		zap.String("cookies_file", store.Path()),
		zap.String("transport", cfg.API.Transport),
		zap.Bool("proxy", cfg.Proxy.Active()),
		zap.Bool("headless", cfg.Browser.Headless))

	return &runtime{cfg: cfg, ctrl: ctrl, client: client, metrics: m}, nil
}

// close saves cookies and stops Chrome with a bounded grace period.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.Close(ctx); err != nil {
		logger.Warn("Session close failed", zap.Error(err))
	}
	_ = logger.Sync()
}
