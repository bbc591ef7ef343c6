package mtop

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint describes one h5 gateway API.
type Endpoint struct {
	BaseURL  string // https://acs.aliexpress.us
	API      string // mtop.aliexpress.pdp.pc.query
	Version  string // 1.0
	JSV      string // 2.7.2
	Callback string // mtopjsonp7
	Timeout  string // server-side timeout hint in ms
}

// URL renders the signed request URL. Parameters are emitted in the same order the
// site's own mtop.js uses; url.Values would sort them.
func (e Endpoint) URL(req *SignedRequest) string {
	params := [][2]string{
		{"jsv", e.JSV},
		{"appKey", req.AppKey},
		{"t", req.Timestamp},
		{"sign", req.Signature},
		{"api", e.API},
		{"v", e.Version},
		{"timeout", e.Timeout},
		{"type", "jsonp"},
		{"dataType", "jsonp"},
		{"callback", e.Callback},
		{"data", req.Payload},
	}

	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}

	return fmt.Sprintf("%s/h5/%s/%s/?%s",
		strings.TrimRight(e.BaseURL, "/"),
		strings.ToLower(e.API),
		strings.ToLower(e.Version),
		b.String())
}
