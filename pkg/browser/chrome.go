package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"aliscan/pkg/cookiestore"
	"aliscan/pkg/logger"
)

// ChromeLauncher starts Chrome through chromedp.
type ChromeLauncher struct {
	opts Options
}

// NewChromeLauncher returns a launcher for opts.
func NewChromeLauncher(opts Options) *ChromeLauncher {
	return &ChromeLauncher{opts: opts.withDefaults()}
}

// Launch starts a new browser process. ctx bounds the launch only; the browser
// itself lives until Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := l.opts

	logger.Debug("Launching Chrome",
		zap.Bool("headless", opts.Headless),
		zap.String("user_agent", opts.UserAgent),
		zap.Bool("proxy", opts.Proxy != nil))

	// The allocator must not inherit ctx: cancelling a request would kill the browser.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		opts:        opts,
	}

	// The first Run starts the process and must use the long-lived context, so the
	// launch deadline is enforced from outside.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, c.setupActions()...)
	}()

	timer := time.NewTimer(opts.LaunchTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			c.teardown()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-timer.C:
		c.teardown()
		return nil, fmt.Errorf("start chrome: timed out after %s", opts.LaunchTimeout)
	case <-ctx.Done():
		c.teardown()
		return nil, fmt.Errorf("start chrome: %w", ctx.Err())
	}

	logger.Info("Chrome started")
	return c, nil
}

// Chrome is a running chromedp browser.
type Chrome struct {
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	closed      bool
}

func (c *Chrome) setupActions() []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}

	if p := c.opts.Proxy; p != nil && p.Username != "" {
		actions = append(actions,
			chromedp.ActionFunc(func(context.Context) error {
				c.listenProxyAuth(p)
				return nil
			}),
			fetch.Enable().WithHandleAuthRequests(true),
		)
	}
	return actions
}

// listenProxyAuth answers proxy auth challenges. With fetch enabled every request
// is paused, so paused requests are continued as well.
func (c *Chrome) listenProxyAuth(p *Proxy) {
	ctx := c.ctx
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				err := chromedp.Run(ctx, fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}))
				if err != nil {
					logger.Debug("Proxy auth response failed", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				if err := chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID)); err != nil {
					logger.Debug("Continue paused request failed", zap.Error(err))
				}
			}()
		}
	})
}

// scoped derives an action context from the browser context that is also cancelled
// with parent and after d.
func (c *Chrome) scoped(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.ctx, d)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Chrome) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// SetCookies implements Browser.
func (c *Chrome) SetCookies(ctx context.Context, cookies []cookiestore.Cookie) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, ToCookieParam(ck))
	}

	actx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()
	if err := chromedp.Run(actx, network.SetCookies(params)); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Cookies implements Browser.
func (c *Chrome) Cookies(ctx context.Context) ([]cookiestore.Cookie, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var raw []*network.Cookie
	actx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()
	err := chromedp.Run(actx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().WithURLs(c.opts.CookieURLs).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	out := make([]cookiestore.Cookie, 0, len(raw))
	for _, rc := range raw {
		out = append(out, FromNetworkCookie(rc))
	}
	return out, nil
}

// Warmup implements Browser.
func (c *Chrome) Warmup(ctx context.Context, url string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	actx, cancel := c.scoped(ctx, c.opts.ActionTimeout)
	defer cancel()

	if err := chromedp.Run(actx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("warm up %s: %w", url, err)
	}

	if c.opts.WaitCookie == "" {
		return nil
	}

	for attempt := 1; ; attempt++ {
		var raw []*network.Cookie
		err := chromedp.Run(actx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = network.GetCookies().WithURLs(c.opts.CookieURLs).Do(ctx)
			return err
		}))
		if err != nil {
			return fmt.Errorf("poll cookies: %w", err)
		}
		for _, rc := range raw {
			if rc.Name == c.opts.WaitCookie && rc.Value != "" {
				logger.Debug("Session cookie issued",
					zap.String("cookie", rc.Name), zap.Int("attempt", attempt))
				return nil
			}
		}

		select {
		case <-actx.Done():
			return fmt.Errorf("wait for cookie %s: %w", c.opts.WaitCookie, actx.Err())
		case <-time.After(time.Second):
		}
	}
}

// Probe implements Browser.
func (c *Chrome) Probe(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	tabCtx, closeTab := chromedp.NewContext(c.ctx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("probe page: %w", ctx.Err())
		}
		return fmt.Errorf("probe page: %w", err)
	}
	return nil
}

// UserAgent implements Browser.
func (c *Chrome) UserAgent() string {
	return c.opts.UserAgent
}

// Close shuts the browser down. Subsequent calls are no-ops.
func (c *Chrome) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := chromedp.Cancel(c.ctx)
	c.teardown()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

func (c *Chrome) teardown() {
	c.cancel()
	c.allocCancel()
}
