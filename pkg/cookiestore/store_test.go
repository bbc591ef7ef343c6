package cookiestore

import (
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

var fixedNow = time.Date(2025, 8, 11, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, path string) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return New(path, WithFs(fs), WithClock(func() time.Time { return fixedNow })), fs
}

func sampleSet() CookieSet {
	future := float64(fixedNow.Add(24 * time.Hour).Unix())
	return CookieSet{
		UserAgent: "Mozilla/5.0 test",
		ProxyUsed: true,
		Cookies: []Cookie{
			{Name: "_m_h5_tk", Value: "tok_1754920000000", Domain: ".aliexpress.us", Path: "/", Expires: future, SameSite: SameSiteNone, Secure: true},
			{Name: "_m_h5_tk_enc", Value: "enc", Domain: ".aliexpress.us", Path: "/", Expires: future, SameSite: SameSiteNone, Secure: true},
			{Name: "xman_t", Value: "x", Domain: ".aliexpress.us", Path: "/", Expires: SessionExpiry, HTTPOnly: true, SameSite: SameSiteLax},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, "data/session_cookies.json")
	in := sampleSet()

	if err := store.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(out.Cookies, in.Cookies) {
		t.Errorf("Cookies differ after round trip\n got: %+v\nwant: %+v", out.Cookies, in.Cookies)
	}
	if out.UserAgent != in.UserAgent || out.ProxyUsed != in.ProxyUsed {
		t.Errorf("Metadata differs: %+v", out)
	}
	if !out.SavedAt.Equal(fixedNow) {
		t.Errorf("Expected saved_at %v, got %v", fixedNow, out.SavedAt)
	}
}

func TestRoundTripDropsCookiesExpiredAtLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := fixedNow
	store := New("cookies.json", WithFs(fs), WithClock(func() time.Time { return now }))

	set := sampleSet()
	set.Cookies = append(set.Cookies, Cookie{
		Name: "short", Value: "v", Domain: ".aliexpress.us", Path: "/",
		Expires: float64(fixedNow.Add(time.Minute).Unix()),
	})
	if err := store.Save(set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	now = fixedNow.Add(2 * time.Minute)
	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Expected 3 cookies after expiry, got %d", out.Len())
	}
	for _, c := range out.Cookies {
		if c.Name == "short" {
			t.Error("Expected expired cookie to be dropped")
		}
	}
}

func TestLoadFiveCookiesOneExpired(t *testing.T) {
	store, fs := newTestStore(t, "session_cookies.json")
	past := fixedNow.Add(-time.Hour).Unix()
	future := fixedNow.Add(time.Hour).Unix()

	content := `{
  "saved_at": "2025-08-11 11:00:00 UTC",
  "timestamp": 1754910000,
  "cookies": [
    {"name": "a", "value": "1", "domain": ".aliexpress.us", "path": "/", "expires": ` + itoa(future) + `, "httpOnly": false, "secure": true, "sameSite": "Lax"},
    {"name": "b", "value": "2", "domain": ".aliexpress.us", "path": "/", "expires": -1, "httpOnly": true, "secure": true, "sameSite": "None"},
    {"name": "c", "value": "3", "domain": ".aliexpress.us", "path": "/", "expires": "` + itoa(future) + `", "httpOnly": false, "secure": false, "sameSite": "lax"},
    {"name": "d", "value": "4", "domain": ".aliexpress.us", "path": "/", "httpOnly": false, "secure": false},
    {"name": "e", "value": "5", "domain": ".aliexpress.us", "path": "/", "expires": ` + itoa(past) + `, "httpOnly": false, "secure": false, "sameSite": "Strict"}
  ],
  "user_agent": "Mozilla/5.0",
  "proxy_used": false
}`
	if err := afero.WriteFile(fs, "session_cookies.json", []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	set, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 4 {
		t.Fatalf("Expected 4 cookies, got %d", set.Len())
	}

	byName := map[string]Cookie{}
	for _, c := range set.Cookies {
		byName[c.Name] = c
	}
	if _, ok := byName["e"]; ok {
		t.Error("Expected expired cookie e to be filtered")
	}
	if !byName["d"].IsSession() {
		t.Error("Expected cookie without expires to be a session cookie")
	}
	if byName["c"].Expires != float64(future) {
		t.Errorf("Expected string expires to parse, got %v", byName["c"].Expires)
	}
	if byName["c"].SameSite != SameSiteLax {
		t.Errorf("Expected normalized sameSite, got %q", byName["c"].SameSite)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t, "absent.json")
	set, err := store.Load()
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Expected empty set, got %d cookies", set.Len())
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"cookies": [{"name": "a"`},
		{"no cookies field", `{"saved_at": "x"}`},
		{"cookies not a list", `{"cookies": "a=1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fs := newTestStore(t, "bad.json")
			afero.WriteFile(fs, "bad.json", []byte(tt.content), 0o644)

			set, err := store.Load()
			if !IsCorrupt(err) {
				t.Fatalf("Expected CorruptStoreError, got %v", err)
			}
			if set.Len() != 0 {
				t.Errorf("Expected empty set on corruption, got %d", set.Len())
			}
		})
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store, fs := newTestStore(t, "out/cookies.json")
	if err := store.Save(sampleSet()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(sampleSet()); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	entries, err := afero.ReadDir(fs, "out")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "cookies.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only cookies.json, got %v", names)
	}

	data, _ := afero.ReadFile(fs, "out/cookies.json")
	if !strings.Contains(string(data), `"saved_at": "2025-08-11 12:00:00 UTC"`) {
		t.Errorf("Expected saved_at in file, got %s", data)
	}
}

func TestSetPath(t *testing.T) {
	store, fs := newTestStore(t, "a.json")
	store.SetPath("b.json")
	if err := store.Save(sampleSet()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ok, _ := afero.Exists(fs, "b.json"); !ok {
		t.Error("Expected cookies at new path")
	}
	store.SetPath("")
	if store.Path() != DefaultPath {
		t.Errorf("Expected default path, got %s", store.Path())
	}
}

func TestCookieSetPutAndFlatten(t *testing.T) {
	var set CookieSet
	set.Put(Cookie{Name: "a", Value: "1", Domain: ".x", Path: "/"})
	set.Put(Cookie{Name: "a", Value: "2", Domain: ".x", Path: "/"})
	set.Put(Cookie{Name: "a", Value: "3", Domain: ".y", Path: "/"})
	set.Put(Cookie{Name: "empty", Value: "", Domain: ".x", Path: "/"})

	if set.Len() != 3 {
		t.Fatalf("Expected name unique per domain+path, got %d cookies", set.Len())
	}
	if got := set.Map(); len(got) != 1 || got["a"] != "3" {
		t.Errorf("Unexpected map %v", got)
	}
	if got := set.Header(); got != "a=3" {
		t.Errorf("Unexpected header %q", got)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
