package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"aliscan/pkg/cookiestore"
)

func TestHTTPTransportDo(t *testing.T) {
	tr, err := NewHTTP(Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	httpmock.ActivateNonDefault(tr.Client())
	defer httpmock.DeactivateAndReset()

	const target = "https://acs.aliexpress.us/h5/mtop.aliexpress.pdp.pc.query/1.0/"
	httpmock.RegisterResponder(http.MethodGet, target,
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Cookie"); got != "_m_h5_tk=tok_1" {
				t.Errorf("Expected cookie header forwarded, got %q", got)
			}
			if got := req.Header.Get("Referer"); got != "https://www.aliexpress.us/" {
				t.Errorf("Expected referer forwarded, got %q", got)
			}
			resp := httpmock.NewStringResponse(200, `mtopjsonp7({"ret":["SUCCESS::ok"]})`)
			resp.Header.Add("Set-Cookie", "_m_h5_tk=tok_2_1754920000000; Domain=.aliexpress.us; Path=/; Max-Age=3600; Secure; SameSite=None")
			resp.Header.Add("Set-Cookie", "hostonly=1")
			return resp, nil
		})

	resp, err := tr.Do(context.Background(), &Request{
		URL: target,
		Header: http.Header{
			"Cookie":  {"_m_h5_tk=tok_1"},
			"Referer": {"https://www.aliexpress.us/"},
		},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `mtopjsonp7({"ret":["SUCCESS::ok"]})` {
		t.Errorf("Unexpected body %s", resp.Body)
	}
	if len(resp.Cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(resp.Cookies))
	}
	if resp.Cookies[0].SameSite != cookiestore.SameSiteNone || resp.Cookies[0].IsSession() {
		t.Errorf("Unexpected first cookie %+v", resp.Cookies[0])
	}
	if resp.Cookies[1].Domain != "acs.aliexpress.us" || !resp.Cookies[1].IsSession() {
		t.Errorf("Expected host-only session cookie, got %+v", resp.Cookies[1])
	}
}

func TestHTTPTransportNetworkError(t *testing.T) {
	tr, _ := NewHTTP(Options{Timeout: time.Second})
	httpmock.ActivateNonDefault(tr.Client())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://acs.aliexpress.us/x",
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	if _, err := tr.Do(context.Background(), &Request{URL: "https://acs.aliexpress.us/x"}); err == nil {
		t.Fatal("Expected network error")
	}
}

func TestCookiesFromHeader(t *testing.T) {
	now := time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Add("Set-Cookie", "a=1; Path=/; Expires=Wed, 01 Jan 2031 00:00:00 GMT; HttpOnly")
	h.Add("Set-Cookie", "gone=; Max-Age=0")

	got := CookiesFromHeader(h, "https://acs.aliexpress.us/h5/x", now)
	if len(got) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(got))
	}
	want := float64(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
	if got[0].Expires != want || !got[0].HTTPOnly {
		t.Errorf("Unexpected cookie %+v", got[0])
	}
	if !got[1].Expired(now) {
		t.Errorf("Expected deleted cookie to be expired, got %+v", got[1])
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New(Options{Kind: "carrier-pigeon"}); err == nil {
		t.Error("Expected error for unknown transport kind")
	}
	tr, err := New(Options{Kind: KindHTTP})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := tr.(*HTTPTransport); !ok {
		t.Errorf("Expected *HTTPTransport, got %T", tr)
	}
}
