package mtop

import "strings"

const (
	// TokenCookie holds "<token>_<expiry ms>" and is issued by the h5 gateway.
	TokenCookie = "_m_h5_tk"
	// TokenEncCookie is the companion cookie the gateway checks alongside the token.
	TokenEncCookie = "_m_h5_tk_enc"
)

// AuthToken is the signing token derived from the _m_h5_tk cookie.
type AuthToken struct {
	Token string
	// ExpiresAtMillis is the expiry suffix of the cookie value, or "" when absent.
	ExpiresAtMillis string
}

// ExtractToken derives the signing token from a name→value cookie map.
func ExtractToken(cookies map[string]string) (AuthToken, error) {
	raw, ok := cookies[TokenCookie]
	if !ok || raw == "" {
		return AuthToken{}, ErrMissingToken
	}

	token, expires, _ := strings.Cut(raw, "_")
	if token == "" {
		return AuthToken{}, ErrMissingToken
	}
	return AuthToken{Token: token, ExpiresAtMillis: expires}, nil
}

// ParseCookieHeader splits a "a=1; b=2" header into a map. Later duplicates win.
func ParseCookieHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		out[name] = value
	}
	return out
}
