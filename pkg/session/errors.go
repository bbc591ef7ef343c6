package session

import "errors"

var (
	// ErrBrowserLaunch wraps failures to start a browser context. Not retried internally.
	ErrBrowserLaunch = errors.New("session: browser launch failed")
	// ErrSessionUnhealthy is reported when a fresh session fails its probe.
	ErrSessionUnhealthy = errors.New("session: unhealthy")
	// ErrNoActiveSession is returned by operations that need a running browser.
	ErrNoActiveSession = errors.New("session: no active session")
)
