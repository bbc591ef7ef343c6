package browser

import (
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"aliscan/pkg/cookiestore"
)

// ToCookieParam converts a stored cookie to its CDP form. Session cookies carry no expiry.
func ToCookieParam(c cookiestore.Cookie) *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if p.Path == "" {
		p.Path = "/"
	}
	if at, ok := c.ExpiresAt(); ok {
		ts := cdp.TimeSinceEpoch(at)
		p.Expires = &ts
	}
	switch c.SameSite {
	case cookiestore.SameSiteStrict:
		p.SameSite = network.CookieSameSiteStrict
	case cookiestore.SameSiteLax:
		p.SameSite = network.CookieSameSiteLax
	case cookiestore.SameSiteNone:
		p.SameSite = network.CookieSameSiteNone
	}
	return p
}

// FromNetworkCookie converts a CDP cookie to the stored form.
func FromNetworkCookie(c *network.Cookie) cookiestore.Cookie {
	out := cookiestore.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: cookiestore.ParseSameSite(c.SameSite.String()),
	}
	if c.Session || c.Expires <= 0 {
		out.Expires = cookiestore.SessionExpiry
	}
	if out.Path == "" {
		out.Path = "/"
	}
	return out
}
