package cookiestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SameSite mirrors the browser's SameSite attribute.
type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// ParseSameSite normalizes the lower-case values written by other tools.
func ParseSameSite(s string) SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return SameSiteStrict
	case "none", "no_restriction":
		return SameSiteNone
	case "lax":
		return SameSiteLax
	default:
		return ""
	}
}

// SessionExpiry marks a cookie that lives only as long as the browser session.
const SessionExpiry = -1

// Cookie is one persisted browser cookie.
type Cookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Expires  float64  `json:"expires"` // epoch seconds, negative for session cookies
	HTTPOnly bool     `json:"httpOnly"`
	Secure   bool     `json:"secure"`
	SameSite SameSite `json:"sameSite,omitempty"`
}

// IsSession reports whether the cookie has no expiry.
func (c Cookie) IsSession() bool {
	return c.Expires < 0
}

// ExpiresAt returns the expiry time; ok is false for session cookies.
func (c Cookie) ExpiresAt() (t time.Time, ok bool) {
	if c.IsSession() {
		return time.Time{}, false
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), true
}

// Expired reports whether the expiry is strictly before now.
func (c Cookie) Expired(now time.Time) bool {
	at, ok := c.ExpiresAt()
	return ok && at.Before(now)
}

func (c Cookie) key() string {
	return c.Domain + "\x00" + c.Path + "\x00" + c.Name
}

// UnmarshalJSON accepts expires as a number, a numeric string or absent. Files
// written by older tooling use all three.
func (c *Cookie) UnmarshalJSON(data []byte) error {
	type alias Cookie
	aux := struct {
		*alias
		Expires  json.RawMessage `json:"expires"`
		SameSite string          `json:"sameSite"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Expires = SessionExpiry
	raw := bytes.TrimSpace(aux.Expires)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var num float64
		if err := json.Unmarshal(raw, &num); err == nil {
			c.Expires = num
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("cookie %q: invalid expires %s", c.Name, raw)
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				c.Expires = f
			}
		}
	}

	c.SameSite = ParseSameSite(aux.SameSite)
	if c.Path == "" {
		c.Path = "/"
	}
	return nil
}

// CookieSet is the persisted artifact: cookies plus provenance metadata.
type CookieSet struct {
	SavedAt   time.Time
	UserAgent string
	ProxyUsed bool
	Cookies   []Cookie
}

// Put inserts or replaces a cookie, keeping name unique per domain+path.
func (s *CookieSet) Put(c Cookie) {
	k := c.key()
	for i := range s.Cookies {
		if s.Cookies[i].key() == k {
			s.Cookies[i] = c
			return
		}
	}
	s.Cookies = append(s.Cookies, c)
}

// Len returns the number of cookies.
func (s CookieSet) Len() int {
	return len(s.Cookies)
}

// Map flattens the set to name→value. Empty values are skipped, and when a name
// appears on several domains the last one wins.
func (s CookieSet) Map() map[string]string {
	out := make(map[string]string, len(s.Cookies))
	for _, c := range s.Cookies {
		if c.Name == "" || c.Value == "" {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

// Header renders the set as a Cookie request header value, preserving order.
func (s CookieSet) Header() string {
	parts := make([]string, 0, len(s.Cookies))
	seen := make(map[string]int, len(s.Cookies))
	for _, c := range s.Cookies {
		if c.Name == "" || c.Value == "" {
			continue
		}
		if i, ok := seen[c.Name]; ok {
			parts[i] = c.Name + "=" + c.Value
			continue
		}
		seen[c.Name] = len(parts)
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// FilterExpired returns a copy of set without cookies that expired strictly before now.
func FilterExpired(set CookieSet, now time.Time) CookieSet {
	out := set
	out.Cookies = make([]Cookie, 0, len(set.Cookies))
	for _, c := range set.Cookies {
		if c.Expired(now) {
			continue
		}
		out.Cookies = append(out.Cookies, c)
	}
	return out
}
