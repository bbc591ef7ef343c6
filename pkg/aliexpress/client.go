// Package aliexpress is the MTOP API client: it signs requests with the token of a
// live browser session and keeps that session usable across calls.
package aliexpress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"aliscan/pkg/browser"
	"aliscan/pkg/cookiestore"
	"aliscan/pkg/logger"
	"aliscan/pkg/metrics"
	"aliscan/pkg/mtop"
	"aliscan/pkg/session"
	"aliscan/pkg/transport"
)

// DefaultMaxAttempts bounds tries per call: the first request plus one retry.
const DefaultMaxAttempts = 2

// Restart reasons, also used as metric labels.
const (
	reasonCaptcha      = "captcha"
	reasonTokenExpired = "token_expired"
	reasonUnhealthy    = "unhealthy"
	reasonManual       = "manual"
	reasonKeepAlive    = "keepalive"
)

var headerOrder = []string{
	"accept",
	"accept-language",
	"cookie",
	"referer",
	"user-agent",
	"origin",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
}

// Options configure a Client.
type Options struct {
	// Endpoint supplies the base URL and protocol constants; API and Version are set per call.
	Endpoint       mtop.Endpoint
	AppKey         string
	Locale         Locale
	Referer        string
	Origin         string
	AcceptLanguage string
	// RateLimit is requests per second; zero disables pacing.
	RateLimit float64
	Burst     int
	// CacheSize and CacheTTL enable a short-lived cache of successful product fetches.
	CacheSize   int
	CacheTTL    time.Duration
	MaxAttempts int
	Metrics     *metrics.Metrics
	Clock       func() time.Time
}

// DefaultOptions targets the US storefront.
func DefaultOptions() Options {
	return Options{
		Endpoint: mtop.Endpoint{
			BaseURL:  "https://acs.aliexpress.us",
			JSV:      "2.7.2",
			Callback: "mtopjsonp7",
			Timeout:  "20000",
		},
		AppKey:         mtop.DefaultAppKey,
		Locale:         DefaultLocale(),
		Referer:        "https://www.aliexpress.us/",
		Origin:         "https://www.aliexpress.us",
		AcceptLanguage: "en-US,en;q=0.9",
		MaxAttempts:    DefaultMaxAttempts,
	}
}

// Client issues signed MTOP calls through a browser-derived session.
type Client struct {
	// mu serialises the health check, restart and request sequence.
	mu        sync.Mutex
	ctrl      *session.Controller
	transport transport.Transport
	opts      Options
	limiter   *rate.Limiter
	cache     *expirable.LRU[string, *RawResponse]
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a client. Zero-valued options fall back to DefaultOptions.
func New(ctrl *session.Controller, tr transport.Transport, opts Options) *Client {
	def := DefaultOptions()
	if opts.Endpoint.BaseURL == "" {
		opts.Endpoint.BaseURL = def.Endpoint.BaseURL
	}
	if opts.Endpoint.JSV == "" {
		opts.Endpoint.JSV = def.Endpoint.JSV
	}
	if opts.Endpoint.Callback == "" {
		opts.Endpoint.Callback = def.Endpoint.Callback
	}
	if opts.Endpoint.Timeout == "" {
		opts.Endpoint.Timeout = def.Endpoint.Timeout
	}
	if opts.AppKey == "" {
		opts.AppKey = def.AppKey
	}
	if opts.Locale == (Locale{}) {
		opts.Locale = def.Locale
	}
	if opts.Referer == "" {
		opts.Referer = def.Referer
	}
	if opts.Origin == "" {
		opts.Origin = def.Origin
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = def.AcceptLanguage
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &Client{
		ctrl:      ctrl,
		transport: tr,
		opts:      opts,
		metrics:   opts.Metrics,
		now:       opts.Clock,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, *RawResponse](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c
}

// FetchProduct queries the product detail API for a product id or URL.
func (c *Client) FetchProduct(ctx context.Context, productIDOrURL string) (*RawResponse, error) {
	id, err := ParseProductID(productIDOrURL)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	ctx = logger.WithProductID(ctx, id)

	if c.cache != nil {
		if hit, ok := c.cache.Get(id); ok {
			c.metrics.IncCacheHit()
			logger.FromContext(ctx).Debug("Product served from cache")
			return hit.cachedCopy(), nil
		}
	}

	payload, err := ProductPayload(id, c.opts.Locale, "")
	if err != nil {
		c.recordError(err)
		return nil, err
	}

	resp, err := c.call(ctx, ProductAPI, ProductVersion, payload, id)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(id, resp.clone())
	}
	return resp, nil
}

// CallAPI issues an arbitrary MTOP call. payload may be a JSON string or any
// value encoding/json accepts.
func (c *Client) CallAPI(ctx context.Context, api, version string, payload interface{}) (*RawResponse, error) {
	return c.call(ctx, api, version, payload, "")
}

func (c *Client) call(ctx context.Context, api, version string, payload interface{}, productID string) (*RawResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publishSession()

	ep := c.opts.Endpoint
	ep.API = api
	ep.Version = version

	var (
		lastErr       *Error
		restartReason string
	)
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.IncRetries()
		}

		if err := c.prepareSession(ctx, restartReason); err != nil {
			c.recordError(err)
			return nil, err
		}
		restartReason = ""

		actx := ctx
		if h := c.ctrl.Handle(); h != nil {
			actx = logger.WithSessionID(ctx, h.ID)
		}
		log := logger.FromContext(actx).With(logger.AttemptField(attempt), zap.String("api", api))

		resp, err := c.attempt(actx, ep, payload)
		if err == nil {
			resp.ProductID = productID
			resp.Attempts = attempt
			c.ctrl.Monitor().RecordSuccess()
			c.saveCookies(actx)
			log.Info("MTOP call succeeded", zap.String("trace_id", resp.TraceID))
			return resp, nil
		}

		lastErr = err
		log.Warn("MTOP attempt failed",
			zap.String("kind", string(err.Kind)),
			zap.String("message", err.Message),
			zap.String("trace_id", err.TraceID),
			zap.Error(err.Err))

		if !err.Retryable() {
			c.recordError(err)
			return nil, err
		}
		switch err.Kind {
		case KindCaptcha:
			// The counter alone decides whether the next attempt restarts.
			c.ctrl.Monitor().RecordFailure()
		case KindAuthTokenExpired:
			restartReason = reasonTokenExpired
		case KindSessionUnhealthy:
			restartReason = reasonUnhealthy
		}
	}

	c.recordError(lastErr)
	return nil, lastErr
}

// prepareSession makes sure a usable session exists before signing. reason forces a restart.
func (c *Client) prepareSession(ctx context.Context, reason string) *Error {
	if !c.ctrl.Active() {
		if _, err := c.ctrl.Start(ctx); err != nil {
			return newError(KindBrowserLaunch, "start browser session", err)
		}
		return nil
	}

	if reason == "" && c.ctrl.Monitor().ShouldRestart() {
		reason = reasonCaptcha
	}
	if reason == "" && !c.ctrl.CheckHealth(ctx) {
		reason = reasonUnhealthy
	}
	if reason == "" {
		return nil
	}
	return c.restart(ctx, reason)
}

func (c *Client) restart(ctx context.Context, reason string) *Error {
	c.metrics.IncRestart(reason)
	logger.FromContext(ctx).Info("Restarting browser session", zap.String("reason", reason))

	if _, err := c.ctrl.Restart(ctx); err != nil {
		if errors.Is(err, session.ErrBrowserLaunch) {
			return newError(KindBrowserLaunch, "restart browser session", err)
		}
		return newError(KindSessionUnhealthy, "restart browser session", err)
	}
	return nil
}

// attempt performs one signed request against the current session.
func (c *Client) attempt(ctx context.Context, ep mtop.Endpoint, payload interface{}) (*RawResponse, *Error) {
	log := logger.FromContext(ctx)

	set, err := c.ctrl.ExtractCookies(ctx)
	if err != nil {
		return nil, newError(KindSessionUnhealthy, "read session cookies", err)
	}

	token, err := mtop.ExtractToken(set.Map())
	if err != nil {
		return nil, newError(KindAuthTokenExpired, "session has no usable token cookie", err)
	}

	signed, err := mtop.NewSignedRequest(token.Token, c.opts.AppKey, payload, c.now())
	if err != nil {
		return nil, newError(KindSignature, "sign request", err)
	}
	log.Debug("Signed request",
		zap.String("t", signed.Timestamp),
		zap.String("sign", signed.Signature),
		logger.Preview(token.Token))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newError(KindNetwork, "wait for rate limiter", err)
		}
	}

	req := &transport.Request{
		URL:         ep.URL(signed),
		Header:      c.headers(set),
		HeaderOrder: headerOrder,
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	elapsed := time.Since(start)
	c.metrics.ObserveDuration(elapsed)
	if err != nil {
		c.metrics.IncRequest("network_error")
		if isTimeout(err) {
			log.Warn("MTOP request timed out", logger.DurationField(elapsed.Milliseconds()))
		}
		return nil, newError(KindNetwork, "request "+ep.API, err)
	}

	if len(resp.Cookies) > 0 {
		if err := c.ctrl.ApplyCookies(ctx, resp.Cookies); err != nil {
			log.Warn("Failed to apply response cookies to session", zap.Error(err))
		}
	}

	raw := &RawResponse{
		API:        ep.API,
		StatusCode: resp.StatusCode,
		Signature:  signed.Signature,
		Timestamp:  signed.Timestamp,
		FetchedAt:  c.now().UTC(),
	}
	out, cerr := classify(raw, resp)
	if cerr != nil {
		c.metrics.IncRequest(outcomeLabel(cerr.Kind))
	} else {
		c.metrics.IncRequest(mtop.OutcomeSuccess.String())
	}
	return out, cerr
}

// classify turns an HTTP exchange into a response or a typed error.
func classify(raw *RawResponse, resp *transport.Response) (*RawResponse, *Error) {
	if resp.StatusCode == mtop.StatusCaptcha {
		raw.Error = "captcha challenge (HTTP 419)"
		e := newError(KindCaptcha, raw.Error, nil)
		e.Response = raw
		return nil, e
	}
	if loc := resp.Header.Get("Location"); mtop.IsCaptchaRedirect(resp.StatusCode, loc) {
		raw.Error = fmt.Sprintf("captcha challenge (HTTP %d to %s)", resp.StatusCode, loc)
		e := newError(KindCaptcha, raw.Error, nil)
		e.Response = raw
		return nil, e
	}

	env, err := mtop.DecodeEnvelope(resp.Body)
	if err != nil {
		switch {
		case mtop.IsCaptchaBody(resp.StatusCode, resp.Body):
			raw.Error = "captcha challenge page"
			e := newError(KindCaptcha, raw.Error, err)
			e.Response = raw
			return nil, e
		case resp.StatusCode != http.StatusOK:
			raw.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
			e := newError(KindNetwork, raw.Error, err)
			e.Response = raw
			return nil, e
		default:
			raw.Error = "unparseable response"
			e := newError(KindAPI, raw.Error, err)
			e.Response = raw
			return nil, e
		}
	}

	raw.Ret = env.Ret
	raw.TraceID = env.TraceID
	raw.Data = env.Data
	if env.API != "" {
		raw.API = env.API
	}

	var kind Kind
	switch mtop.Classify(env) {
	case mtop.OutcomeSuccess:
		if resp.StatusCode != http.StatusOK {
			raw.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
			e := newError(KindNetwork, raw.Error, nil)
			e.TraceID = env.TraceID
			e.Response = raw
			return nil, e
		}
		raw.Success = true
		return raw, nil
	case mtop.OutcomeCaptcha:
		kind = KindCaptcha
	case mtop.OutcomeTokenExpired:
		kind = KindAuthTokenExpired
	default:
		kind = KindAPI
	}

	raw.Error = "API error: " + mtop.RetMessage(env)
	e := newError(kind, mtop.RetMessage(env), nil)
	e.TraceID = env.TraceID
	e.Response = raw
	return nil, e
}

func outcomeLabel(k Kind) string {
	switch k {
	case KindCaptcha:
		return mtop.OutcomeCaptcha.String()
	case KindAuthTokenExpired:
		return mtop.OutcomeTokenExpired.String()
	case KindNetwork:
		return "network_error"
	default:
		return mtop.OutcomeAPIError.String()
	}
}

func (c *Client) headers(set cookiestore.CookieSet) http.Header {
	ua := set.UserAgent
	if ua == "" {
		ua = browser.DefaultUserAgent
	}
	return http.Header{
		"Accept":          {"*/*"},
		"Accept-Language": {c.opts.AcceptLanguage},
		"Cookie":          {set.Header()},
		"Referer":         {c.opts.Referer},
		"User-Agent":      {ua},
		"Origin":          {c.opts.Origin},
		"Sec-Fetch-Dest":  {"empty"},
		"Sec-Fetch-Mode":  {"cors"},
		"Sec-Fetch-Site":  {"same-site"},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// saveCookies persists the live cookies after a successful call. A failed save
// is logged; the response is still returned.
func (c *Client) saveCookies(ctx context.Context) {
	if err := c.ctrl.SaveCookies(ctx); err != nil {
		c.metrics.IncCookieSave(false)
		logger.FromContext(ctx).Warn("Failed to save session cookies", zap.Error(err))
		return
	}
	c.metrics.IncCookieSave(true)
}

func (c *Client) recordError(err error) {
	if k := KindOf(err); k != "" {
		c.metrics.IncError(string(k))
	}
}

func (c *Client) publishSession() {
	c.metrics.SetSession(c.ctrl.Active(), c.ctrl.Monitor().Failures())
}
