package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPTransport uses net/http. It is used when TLS fingerprinting is not needed
// and in tests, where httpmock intercepts its client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTP builds a net/http transport.
func NewHTTP(opts Options) (*HTTPTransport, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(u)
	}
	client := &http.Client{
		Transport: tr,
		Timeout:   opts.Timeout,
		// Redirects are returned as is, matching the TLS transport, so a
		// challenge redirect can be recognised from its Location header.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &HTTPTransport{client: client}, nil
}

// Client exposes the underlying client.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Cookies:    CookiesFromHeader(resp.Header, req.URL, time.Now()),
	}, nil
}
