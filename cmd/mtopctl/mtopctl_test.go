package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aliscan/pkg/config"
	"aliscan/pkg/mtop"
)

func TestParseInputs(t *testing.T) {
	in := "# products\n3256809096800275\n\n  https://www.aliexpress.us/item/1005006000000000.html  \n#skip\n"
	got, err := parseInputs(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parseInputs failed: %v", err)
	}
	want := []string{"3256809096800275", "https://www.aliexpress.us/item/1005006000000000.html"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestCollectInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("2\n3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := collectInputs([]string{"1"}, path)
	if err != nil {
		t.Fatalf("collectInputs failed: %v", err)
	}
	if strings.Join(got, ",") != "1,2,3" {
		t.Errorf("Expected args before file lines, got %v", got)
	}

	if _, err := collectInputs(nil, ""); !errors.Is(err, ErrNoInputs) {
		t.Errorf("Expected ErrNoInputs, got %v", err)
	}
	if _, err := collectInputs(nil, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing input file")
	}
}

func TestSignCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	args := []string{"mtopctl", "sign",
		"--cookie", "_m_h5_tk=abc123_1700000000000; other=1",
		"--data", `{"productId":"1"}`,
		"--t", "1700000000000"}
	if err := app.Run(args); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("Invalid output %q: %v", out.String(), err)
	}
	want := mtop.Sign("abc123", "1700000000000", mtop.DefaultAppKey, `{"productId":"1"}`)
	if got["sign"] != want {
		t.Errorf("Expected sign %s, got %s", want, got["sign"])
	}
	if !strings.Contains(got["url"], "/h5/mtop.aliexpress.pdp.pc.query/1.0/?jsv=") {
		t.Errorf("Unexpected url %s", got["url"])
	}
}

func TestWiringOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Proxy = &config.ProxyConfig{Enabled: true, Username: "u", Password: "p", Endpoint: "proxy.local:7777"}
	cfg.Browser.LaunchTimeout = 5

	b := browserOptions(cfg)
	if b.Proxy == nil || b.Proxy.Server != "http://proxy.local:7777" || b.Proxy.Username != "u" {
		t.Errorf("Unexpected browser proxy %+v", b.Proxy)
	}
	if b.WaitCookie != mtop.TokenCookie {
		t.Errorf("Expected warmup to wait for %s, got %s", mtop.TokenCookie, b.WaitCookie)
	}
	if b.LaunchTimeout.Seconds() != 5 {
		t.Errorf("Expected 5s launch timeout, got %v", b.LaunchTimeout)
	}

	tr := transportOptions(cfg)
	if tr.ProxyURL != "http://u:p@proxy.local:7777" {
		t.Errorf("Unexpected transport proxy %s", tr.ProxyURL)
	}

	cfg.Proxy.Enabled = false
	if browserOptions(cfg).Proxy != nil || transportOptions(cfg).ProxyURL != "" {
		t.Error("Expected no proxy when disabled")
	}
}
