package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// DefaultProfile matches the Chrome build used for the browser session.
const DefaultProfile = "chrome_131"

var pseudoHeaderOrder = []string{":method", ":authority", ":scheme", ":path"}

// TLSTransport sends requests with a browser TLS and HTTP/2 fingerprint.
type TLSTransport struct {
	client tls_client.HttpClient
}

// NewTLS builds a tls-client transport.
func NewTLS(opts Options) (*TLSTransport, error) {
	name := strings.ToLower(opts.Profile)
	if name == "" {
		name = DefaultProfile
	}
	profile, ok := profiles.MappedTLSClients[name]
	if !ok {
		logger.Warn("Unknown TLS profile, using default",
			zap.String("profile", name), zap.String("default", DefaultProfile))
		profile = profiles.Chrome_131
	}

	timeout := int(opts.Timeout / time.Second)
	if timeout <= 0 {
		timeout = 20
	}
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeout),
		tls_client.WithClientProfile(profile),
		tls_client.WithNotFollowRedirects(),
	}
	if opts.ProxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("create tls client: %w", err)
	}
	return &TLSTransport{client: client}, nil
}

// Do implements Transport.
func (t *TLSTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	freq, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	freq.Header = fhttp.Header{}
	for k, vs := range req.Header {
		freq.Header[k] = append([]string(nil), vs...)
	}
	if len(req.HeaderOrder) > 0 {
		freq.Header[fhttp.HeaderOrderKey] = req.HeaderOrder
	}
	freq.Header[fhttp.PHeaderOrderKey] = pseudoHeaderOrder

	resp, err := t.client.Do(freq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	header := http.Header(resp.Header)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
		Cookies:    CookiesFromHeader(header, req.URL, time.Now()),
	}, nil
}
