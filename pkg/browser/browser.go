// Package browser drives the headless Chrome instance that owns the MTOP session cookies.
package browser

import (
	"context"
	"errors"
	"time"

	"aliscan/pkg/cookiestore"
)

// DefaultUserAgent matches the desktop Chrome build the storefront is warmed up with.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ErrClosed is returned by operations on a browser that has been shut down.
var ErrClosed = errors.New("browser: closed")

// Browser is a live browser context holding cookies for a single session.
type Browser interface {
	// SetCookies injects cookies into the context.
	SetCookies(ctx context.Context, cookies []cookiestore.Cookie) error
	// Cookies returns the cookies visible to the configured cookie URLs.
	Cookies(ctx context.Context) ([]cookiestore.Cookie, error)
	// Warmup navigates to url so the storefront issues its session cookies.
	Warmup(ctx context.Context, url string) error
	// Probe opens and closes a throwaway page.
	Probe(ctx context.Context) error
	UserAgent() string
	Close() error
}

// Launcher starts browser contexts.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Proxy is an upstream HTTP proxy, optionally authenticated.
type Proxy struct {
	Server   string
	Username string
	Password string
}

// Options configure the Chrome launcher.
type Options struct {
	Headless      bool
	ChromePath    string
	UserAgent     string
	WindowWidth   int
	WindowHeight  int
	LaunchTimeout time.Duration
	ActionTimeout time.Duration
	// CookieURLs scope which cookies Cookies returns.
	CookieURLs []string
	// WaitCookie, when set, makes Warmup poll until that cookie is present.
	WaitCookie string
	Proxy      *Proxy
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.WindowWidth <= 0 || o.WindowHeight <= 0 {
		o.WindowWidth, o.WindowHeight = 1920, 1080
	}
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = 60 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if len(o.CookieURLs) == 0 {
		o.CookieURLs = []string{"https://www.aliexpress.us", "https://acs.aliexpress.us"}
	}
	return o
}
