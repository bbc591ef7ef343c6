package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aliscan/pkg/browser"
	"aliscan/pkg/cookiestore"
	"aliscan/pkg/logger"
)

// Handle identifies one live browser context.
type Handle struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// ControllerOptions configure a Controller.
type ControllerOptions struct {
	// WarmupURL is visited after launch so the storefront issues its token cookie.
	WarmupURL string
	ProxyUsed bool
}

// Controller owns at most one browser context at a time and keeps its cookies
// in sync with the cookie store.
type Controller struct {
	mu       sync.Mutex
	launcher browser.Launcher
	store    *cookiestore.Store
	monitor  *Monitor
	opts     ControllerOptions

	browser browser.Browser
	handle  *Handle
}

// NewController wires a controller. The monitor is shared with the API client.
func NewController(launcher browser.Launcher, store *cookiestore.Store, monitor *Monitor, opts ControllerOptions) *Controller {
	return &Controller{
		launcher: launcher,
		store:    store,
		monitor:  monitor,
		opts:     opts,
	}
}

// Monitor returns the health monitor driving restarts.
func (c *Controller) Monitor() *Monitor {
	return c.monitor
}

// Store returns the cookie store.
func (c *Controller) Store() *cookiestore.Store {
	return c.store
}

// Start launches a browser unless one is already running, in which case the
// existing handle is returned.
func (c *Controller) Start(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) (*Handle, error) {
	if c.browser != nil {
		return c.handle, nil
	}

	set, err := c.store.Load()
	if err != nil {
		if cookiestore.IsCorrupt(err) {
			logger.Warn("Cookie store corrupt, starting with an empty session", zap.Error(err))
		} else {
			logger.Warn("Could not load saved cookies", zap.Error(err))
		}
		set = cookiestore.CookieSet{}
	}

	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserLaunch, err)
	}

	handle := &Handle{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := logger.FromContext(logger.WithSessionID(ctx, handle.ID))

	if set.Len() > 0 {
		if err := b.SetCookies(ctx, set.Cookies); err != nil {
			log.Warn("Failed to apply saved cookies", zap.Error(err))
		} else {
			log.Info("Applied saved cookies", zap.Int("count", set.Len()))
		}
	}

	if c.opts.WarmupURL != "" {
		if err := b.Warmup(ctx, c.opts.WarmupURL); err != nil {
			// The request path detects a missing token and restarts, so warmup is best effort.
			log.Warn("Session warmup failed", zap.String("url", c.opts.WarmupURL), zap.Error(err))
		}
	}

	c.browser = b
	c.handle = handle
	log.Info("Browser session started")
	return handle, nil
}

// Restart closes the current browser, resets the monitor and starts a fresh
// context with cookies reloaded from the store.
func (c *Controller) Restart(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		log := logger.FromContext(logger.WithSessionID(ctx, c.handle.ID))
		if err := c.browser.Close(); err != nil {
			log.Warn("Failed to close browser, abandoning it", zap.Error(err))
		} else {
			log.Info("Browser session closed for restart")
		}
		c.browser = nil
		c.handle = nil
	}

	c.monitor.Reset()
	return c.startLocked(ctx)
}

// CheckHealth probes the live context. It only reports; restarting is up to the caller.
func (c *Controller) CheckHealth(ctx context.Context) bool {
	c.mu.Lock()
	b := c.browser
	c.mu.Unlock()
	if b == nil {
		return false
	}
	return c.monitor.ProbeHealth(ctx, b)
}

// ExtractCookies reads the live cookies together with the session metadata.
func (c *Controller) ExtractCookies(ctx context.Context) (cookiestore.CookieSet, error) {
	c.mu.Lock()
	b := c.browser
	c.mu.Unlock()
	if b == nil {
		return cookiestore.CookieSet{}, ErrNoActiveSession
	}

	cookies, err := b.Cookies(ctx)
	if err != nil {
		return cookiestore.CookieSet{}, err
	}

	set := cookiestore.CookieSet{
		UserAgent: b.UserAgent(),
		ProxyUsed: c.opts.ProxyUsed,
	}
	for _, ck := range cookies {
		set.Put(ck)
	}
	return set, nil
}

// ApplyCookies pushes cookies set by API responses into the live context.
func (c *Controller) ApplyCookies(ctx context.Context, cookies []cookiestore.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	c.mu.Lock()
	b := c.browser
	c.mu.Unlock()
	if b == nil {
		return ErrNoActiveSession
	}
	return b.SetCookies(ctx, cookies)
}

// SaveCookies persists the live cookies.
func (c *Controller) SaveCookies(ctx context.Context) error {
	set, err := c.ExtractCookies(ctx)
	if err != nil {
		return fmt.Errorf("extract cookies: %w", err)
	}
	return c.store.Save(set)
}

// Close saves cookies on a best-effort basis and shuts the browser down. A
// Degraded session keeps the stored cookies, since its own are challenged.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		return nil
	}

	b := c.browser
	if c.monitor.ShouldRestart() {
		logger.Warn("Session degraded, keeping stored cookies",
			zap.Int("captcha_failures", c.monitor.Failures()))
	} else if cookies, err := b.Cookies(ctx); err != nil {
		logger.Warn("Could not read cookies before close", zap.Error(err))
	} else {
		set := cookiestore.CookieSet{UserAgent: b.UserAgent(), ProxyUsed: c.opts.ProxyUsed}
		for _, ck := range cookies {
			set.Put(ck)
		}
		if err := c.store.Save(set); err != nil {
			logger.Warn("Could not save cookies before close", zap.Error(err))
		}
	}

	c.browser = nil
	c.handle = nil
	if err := b.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	logger.Info("Browser session closed")
	return nil
}

// Active reports whether a browser context is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser != nil
}

// Handle returns the current handle, or nil when inactive.
func (c *Controller) Handle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return nil
	}
	h := *c.handle
	return &h
}

// State merges the monitor snapshot with the controller's active flag.
func (c *Controller) State() SessionState {
	st := c.monitor.State()
	st.Active = c.Active()
	return st
}
