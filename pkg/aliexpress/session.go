package aliexpress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"aliscan/pkg/logger"
	"aliscan/pkg/session"
)

// Status is a snapshot of the client's session for status endpoints.
type Status struct {
	Session       session.SessionState `json:"session"`
	Handle        *session.Handle      `json:"handle,omitempty"`
	CookiesFile   string               `json:"cookies_file"`
	CachedEntries int                  `json:"cached_entries"`
}

// Status reports the session without waiting for in-flight calls.
func (c *Client) Status() Status {
	st := Status{
		Session:     c.ctrl.State(),
		Handle:      c.ctrl.Handle(),
		CookiesFile: c.ctrl.Store().Path(),
	}
	if c.cache != nil {
		st.CachedEntries = c.cache.Len()
	}
	return st
}

// CookiesForRequests returns the active session's cookies as name→value. With no
// active session it logs a warning and returns an empty map.
func (c *Client) CookiesForRequests(ctx context.Context) map[string]string {
	set, err := c.ctrl.ExtractCookies(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			logger.FromContext(ctx).Warn("No active session, returning no cookies")
		} else {
			logger.FromContext(ctx).Warn("Could not read session cookies", zap.Error(err))
		}
		return map[string]string{}
	}
	return set.Map()
}

// SetCookiesFile changes where session cookies are loaded from and saved to.
func (c *Client) SetCookiesFile(path string) {
	c.ctrl.Store().SetPath(path)
}

// SaveSessionCookies persists the live cookies now.
func (c *Client) SaveSessionCookies(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ctrl.Active() {
		return newError(KindSessionUnhealthy, "no active session to save", session.ErrNoActiveSession)
	}
	if err := c.ctrl.SaveCookies(ctx); err != nil {
		c.metrics.IncCookieSave(false)
		return newError(KindSessionUnhealthy, "save session cookies", err)
	}
	c.metrics.IncCookieSave(true)
	return nil
}

// Restart forces a fresh browser session.
func (c *Client) Restart(ctx context.Context) (*session.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishSession()

	if err := c.restart(ctx, reasonManual); err != nil {
		c.recordError(err)
		return nil, err
	}
	return c.ctrl.Handle(), nil
}

// Maintain keeps an idle session alive: it restarts a degraded or unresponsive
// session and saves cookies. It does nothing when no session is running.
func (c *Client) Maintain(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishSession()

	if !c.ctrl.Active() {
		logger.FromContext(ctx).Debug("No active session to maintain")
		return nil
	}

	start := time.Now()
	if c.ctrl.Monitor().ShouldRestart() || !c.ctrl.CheckHealth(ctx) {
		if err := c.restart(ctx, reasonKeepAlive); err != nil {
			c.recordError(err)
			return err
		}
	}

	if err := c.ctrl.SaveCookies(ctx); err != nil {
		c.metrics.IncCookieSave(false)
		return newError(KindSessionUnhealthy, "save session cookies", err)
	}
	c.metrics.IncCookieSave(true)

	logger.FromContext(ctx).Debug("Session maintained",
		logger.DurationField(time.Since(start).Milliseconds()))
	return nil
}

// Close saves cookies and shuts the browser down.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishSession()
	return c.ctrl.Close(ctx)
}
