// Package transport issues the signed MTOP GET requests, either through a
// Chrome-fingerprinted TLS client or the standard library client.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"aliscan/pkg/cookiestore"
)

// Kinds accepted by New.
const (
	KindTLS  = "tls"
	KindHTTP = "http"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 16 << 20

// Request is a GET with headers sent in HeaderOrder where the transport supports it.
type Request struct {
	URL         string
	Header      http.Header
	HeaderOrder []string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cookies are the Set-Cookie entries of the response.
	Cookies []cookiestore.Cookie
}

// Transport performs a single HTTP exchange. Any returned error is a network failure.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Options configure a transport.
type Options struct {
	Kind     string
	Timeout  time.Duration
	ProxyURL string
	// Profile names a tls-client browser profile, for example "chrome_131".
	Profile string
}

// New builds the transport selected by opts.Kind. TLS is the default.
func New(opts Options) (Transport, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	switch opts.Kind {
	case "", KindTLS:
		return NewTLS(opts)
	case KindHTTP:
		return NewHTTP(opts)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", opts.Kind)
	}
}

// CookiesFromHeader parses Set-Cookie headers. Cookies without a Domain
// attribute are scoped to the request host.
func CookiesFromHeader(h http.Header, requestURL string, now time.Time) []cookiestore.Cookie {
	parsed := (&http.Response{Header: h}).Cookies()
	if len(parsed) == 0 {
		return nil
	}

	host := ""
	if u, err := url.Parse(requestURL); err == nil {
		host = u.Hostname()
	}

	out := make([]cookiestore.Cookie, 0, len(parsed))
	for _, c := range parsed {
		ck := cookiestore.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  cookiestore.SessionExpiry,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
			SameSite: sameSite(c.SameSite),
		}
		if ck.Domain == "" {
			ck.Domain = host
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
		switch {
		case c.MaxAge > 0:
			ck.Expires = float64(now.Add(time.Duration(c.MaxAge) * time.Second).Unix())
		case c.MaxAge < 0:
			// Max-Age<=0 deletes the cookie.
			ck.Expires = float64(now.Add(-time.Hour).Unix())
		case !c.Expires.IsZero():
			ck.Expires = float64(c.Expires.Unix())
		}
		out = append(out, ck)
	}
	return out
}

func sameSite(s http.SameSite) cookiestore.SameSite {
	switch s {
	case http.SameSiteStrictMode:
		return cookiestore.SameSiteStrict
	case http.SameSiteLaxMode:
		return cookiestore.SameSiteLax
	case http.SameSiteNoneMode:
		return cookiestore.SameSiteNone
	default:
		return ""
	}
}
