package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"aliscan/pkg/browser"
	"aliscan/pkg/cookiestore"
)

type fakeBrowser struct {
	mu       sync.Mutex
	cookies  []cookiestore.Cookie
	probeErr error
	closeErr error
	closed   bool
	warmed   []string
}

func (b *fakeBrowser) SetCookies(_ context.Context, cookies []cookiestore.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var set cookiestore.CookieSet
	set.Cookies = b.cookies
	for _, c := range cookies {
		set.Put(c)
	}
	b.cookies = set.Cookies
	return nil
}

func (b *fakeBrowser) Cookies(context.Context) ([]cookiestore.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]cookiestore.Cookie(nil), b.cookies...), nil
}

func (b *fakeBrowser) Warmup(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warmed = append(b.warmed, url)
	return nil
}

func (b *fakeBrowser) Probe(ctx context.Context) error {
	if b.probeErr != nil {
		return b.probeErr
	}
	return ctx.Err()
}

func (b *fakeBrowser) UserAgent() string { return "fake-agent" }

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.closeErr
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	err      error
	next     func() *fakeBrowser
	browsers []*fakeBrowser
}

func (l *fakeLauncher) Launch(context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{}
	if l.next != nil {
		b = l.next()
	}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func newTestController(t *testing.T, l *fakeLauncher) (*Controller, *cookiestore.Store) {
	t.Helper()
	store := cookiestore.New("cookies.json", cookiestore.WithFs(afero.NewMemMapFs()))
	c := NewController(l, store, NewMonitor(3, time.Second), ControllerOptions{WarmupURL: "https://www.aliexpress.us/"})
	return c, store
}

func TestMonitorThreshold(t *testing.T) {
	m := NewMonitor(3, time.Second)

	for i := 0; i < 2; i++ {
		m.RecordFailure()
	}
	if m.ShouldRestart() {
		t.Error("Expected no restart after max-1 failures")
	}
	if m.State().Health != Healthy {
		t.Errorf("Expected healthy, got %s", m.State().Health)
	}

	m.RecordFailure()
	if !m.ShouldRestart() {
		t.Error("Expected restart after max failures")
	}
	if !m.ShouldRestart() {
		t.Error("Expected ShouldRestart to have no side effects")
	}
	if m.State().Health != Degraded {
		t.Errorf("Expected degraded, got %s", m.State().Health)
	}

	m.RecordSuccess()
	if m.ShouldRestart() || m.Failures() != 0 {
		t.Error("Expected success to reset the counter")
	}
}

func TestMonitorDefaults(t *testing.T) {
	m := NewMonitor(0, 0)
	if st := m.State(); st.MaxCaptchaAttempts != DefaultMaxCaptchaAttempts {
		t.Errorf("Expected default max %d, got %d", DefaultMaxCaptchaAttempts, st.MaxCaptchaAttempts)
	}
}

func TestMonitorProbeHealth(t *testing.T) {
	m := NewMonitor(3, 50*time.Millisecond)

	if !m.ProbeHealth(context.Background(), &fakeBrowser{}) {
		t.Error("Expected healthy probe")
	}
	if m.ProbeHealth(context.Background(), &fakeBrowser{probeErr: errors.New("target crashed")}) {
		t.Error("Expected failed probe")
	}
	if m.ProbeHealth(context.Background(), nil) {
		t.Error("Expected nil prober to be unhealthy")
	}
}

func TestControllerStartIsIdempotent(t *testing.T) {
	l := &fakeLauncher{}
	c, _ := newTestController(t, l)

	h1, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h2, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if h1.ID != h2.ID {
		t.Errorf("Expected same handle, got %s and %s", h1.ID, h2.ID)
	}
	if l.launches != 1 {
		t.Errorf("Expected one launch, got %d", l.launches)
	}
	if !c.State().Active {
		t.Error("Expected active session")
	}
	if got := l.browsers[0].warmed; len(got) != 1 || got[0] != "https://www.aliexpress.us/" {
		t.Errorf("Expected warmup navigation, got %v", got)
	}
}

func TestControllerStartAppliesStoredCookies(t *testing.T) {
	l := &fakeLauncher{}
	c, store := newTestController(t, l)

	saved := cookiestore.CookieSet{Cookies: []cookiestore.Cookie{
		{Name: "_m_h5_tk", Value: "tok_1", Domain: ".aliexpress.us", Path: "/", Expires: cookiestore.SessionExpiry},
	}}
	if err := store.Save(saved); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	set, err := c.ExtractCookies(context.Background())
	if err != nil {
		t.Fatalf("ExtractCookies failed: %v", err)
	}
	if set.Map()["_m_h5_tk"] != "tok_1" {
		t.Errorf("Expected stored token cookie in browser, got %v", set.Map())
	}
	if set.UserAgent != "fake-agent" {
		t.Errorf("Expected user agent recorded, got %q", set.UserAgent)
	}
}

func TestControllerStartLaunchFailure(t *testing.T) {
	l := &fakeLauncher{err: errors.New("chrome not found")}
	c, _ := newTestController(t, l)

	_, err := c.Start(context.Background())
	if !errors.Is(err, ErrBrowserLaunch) {
		t.Fatalf("Expected ErrBrowserLaunch, got %v", err)
	}
	if c.Active() {
		t.Error("Expected inactive session after launch failure")
	}
}

func TestControllerRestartResetsMonitor(t *testing.T) {
	l := &fakeLauncher{}
	c, _ := newTestController(t, l)

	h1, err := c.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		c.Monitor().RecordFailure()
	}
	if !c.Monitor().ShouldRestart() {
		t.Fatal("Expected degraded monitor before restart")
	}

	h2, err := c.Restart(context.Background())
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	if h1.ID == h2.ID {
		t.Error("Expected a new handle after restart")
	}
	if c.Monitor().Failures() != 0 || c.Monitor().ShouldRestart() {
		t.Error("Expected counter reset after restart")
	}
	if !l.browsers[0].closed {
		t.Error("Expected old browser closed before the new one started")
	}
	if l.launches != 2 {
		t.Errorf("Expected two launches, got %d", l.launches)
	}
}

func TestControllerRestartAbandonsBrowserThatFailsToClose(t *testing.T) {
	first := true
	l := &fakeLauncher{next: func() *fakeBrowser {
		if first {
			first = false
			return &fakeBrowser{closeErr: errors.New("websocket gone")}
		}
		return &fakeBrowser{}
	}}
	c, _ := newTestController(t, l)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Restart(context.Background()); err != nil {
		t.Fatalf("Expected restart to succeed despite close failure, got %v", err)
	}
	if !c.Active() {
		t.Error("Expected fresh session active")
	}
}

func TestControllerCheckHealth(t *testing.T) {
	l := &fakeLauncher{next: func() *fakeBrowser { return &fakeBrowser{probeErr: errors.New("dead")} }}
	c, _ := newTestController(t, l)

	if c.CheckHealth(context.Background()) {
		t.Error("Expected inactive session to be unhealthy")
	}
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.CheckHealth(context.Background()) {
		t.Error("Expected failing probe to report unhealthy")
	}
	if l.launches != 1 {
		t.Error("Expected CheckHealth not to restart")
	}
}

func TestControllerSaveAndClose(t *testing.T) {
	l := &fakeLauncher{}
	c, store := newTestController(t, l)

	if err := c.SaveCookies(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Expected ErrNoActiveSession before start, got %v", err)
	}

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := c.ApplyCookies(context.Background(), []cookiestore.Cookie{
		{Name: "_m_h5_tk", Value: "fresh_1", Domain: ".aliexpress.us", Path: "/", Expires: cookiestore.SessionExpiry},
	})
	if err != nil {
		t.Fatalf("ApplyCookies failed: %v", err)
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if c.Active() || c.Handle() != nil {
		t.Error("Expected inactive session after close")
	}

	set, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if set.Map()["_m_h5_tk"] != "fresh_1" {
		t.Errorf("Expected cookies saved on close, got %v", set.Map())
	}
}

func TestControllerCloseKeepsStoredCookiesWhenDegraded(t *testing.T) {
	l := &fakeLauncher{}
	c, store := newTestController(t, l)

	good := cookiestore.CookieSet{Cookies: []cookiestore.Cookie{
		{Name: "_m_h5_tk", Value: "good_1", Domain: ".aliexpress.us", Path: "/", Expires: cookiestore.SessionExpiry},
	}}
	if err := store.Save(good); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := c.ApplyCookies(context.Background(), []cookiestore.Cookie{
		{Name: "_m_h5_tk", Value: "challenged_2", Domain: ".aliexpress.us", Path: "/", Expires: cookiestore.SessionExpiry},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		c.Monitor().RecordFailure()
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !l.browsers[0].closed {
		t.Error("Expected browser closed")
	}

	set, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := set.Map()["_m_h5_tk"]; got != "good_1" {
		t.Errorf("Expected stored cookies kept, got %q", got)
	}
}
