package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aliscan/pkg/aliexpress"
	"aliscan/pkg/config"
	"aliscan/pkg/handlers"
	"aliscan/pkg/metrics"
	"aliscan/pkg/session"
)

type fakeClient struct {
	fetchErr   error
	restartErr error
	saveErr    error
	state      session.SessionState
	inputs     []string
	restarts   int
	saves      int
}

func (f *fakeClient) FetchProduct(ctx context.Context, input string) (*aliexpress.RawResponse, error) {
	f.inputs = append(f.inputs, input)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &aliexpress.RawResponse{
		Success:   true,
		ProductID: "3256809096800275",
		TraceID:   "trace-1",
		Data:      map[string]interface{}{"result": map[string]interface{}{"TITLE": "Lamp"}},
	}, nil
}

func (f *fakeClient) CookiesForRequests(ctx context.Context) map[string]string {
	return map[string]string{"_m_h5_tk": "abc_1"}
}

func (f *fakeClient) Status() aliexpress.Status {
	return aliexpress.Status{Session: f.state, CookiesFile: "session_cookies.json"}
}

func (f *fakeClient) Restart(ctx context.Context) (*session.Handle, error) {
	f.restarts++
	if f.restartErr != nil {
		return nil, f.restartErr
	}
	return &session.Handle{ID: "h-1", StartedAt: time.Unix(0, 0).UTC()}, nil
}

func (f *fakeClient) SaveSessionCookies(ctx context.Context) error {
	f.saves++
	return f.saveErr
}

func newTestServer(fc *fakeClient) *HTTPServer {
	gin.SetMode(gin.TestMode)
	svc := handlers.NewHandlerService(config.Default(), fc)
	return NewHTTPServer(&Config{Address: "127.0.0.1", Port: 0}, svc, metrics.New())
}

func do(t *testing.T, s *HTTPServer, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Invalid JSON body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestGetProduct(t *testing.T) {
	fc := &fakeClient{}
	s := newTestServer(fc)

	rec, body := do(t, s, http.MethodGet, "/api/v1/products/3256809096800275")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["product_id"] != "3256809096800275" {
		t.Errorf("Unexpected body %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	_, body = do(t, s, http.MethodGet, "/api/v1/products/x?url=https://www.aliexpress.us/item/1.html&view=result")
	if fc.inputs[1] != "https://www.aliexpress.us/item/1.html" {
		t.Errorf("Expected url query to win, got %q", fc.inputs[1])
	}
	result, _ := body["result"].(map[string]interface{})
	if result["TITLE"] != "Lamp" {
		t.Errorf("Expected result view, got %v", body)
	}
}

func TestGetProductErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"invalid id", &aliexpress.Error{Kind: aliexpress.KindInvalidProductID, Message: "no id"}, http.StatusBadRequest, "InvalidProductID"},
		{"captcha", &aliexpress.Error{Kind: aliexpress.KindCaptcha, Message: "RGV587_ERROR"}, http.StatusTooManyRequests, "CaptchaChallenge"},
		{"launch", &aliexpress.Error{Kind: aliexpress.KindBrowserLaunch, Message: "no chrome"}, http.StatusServiceUnavailable, "BrowserLaunchError"},
		{"network", &aliexpress.Error{Kind: aliexpress.KindNetwork, Message: "502"}, http.StatusBadGateway, "NetworkError"},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeClient{fetchErr: tt.err})
			rec, body := do(t, s, http.MethodGet, "/api/v1/products/1")
			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}
			if body["error"] != true {
				t.Errorf("Expected error body, got %v", body)
			}
			kind, _ := body["kind"].(string)
			if kind != tt.kind {
				t.Errorf("Expected kind %q, got %q", tt.kind, kind)
			}
			if body["request_id"] == "" {
				t.Error("Expected request_id in error body")
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	fc := &fakeClient{state: session.SessionState{Active: true, Health: session.Healthy, MaxCaptchaAttempts: 3}}
	s := newTestServer(fc)

	rec, body := do(t, s, http.MethodGet, "/api/v1/cookies")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("Unexpected cookies response %d %v", rec.Code, body)
	}

	rec, body = do(t, s, http.MethodGet, "/api/v1/session")
	sess, _ := body["session"].(map[string]interface{})
	if rec.Code != http.StatusOK || sess["active"] != true {
		t.Errorf("Unexpected session response %d %v", rec.Code, body)
	}

	rec, body = do(t, s, http.MethodPost, "/api/v1/session/restart")
	if rec.Code != http.StatusOK || body["restarted"] != true || fc.restarts != 1 {
		t.Errorf("Unexpected restart response %d %v", rec.Code, body)
	}

	rec, body = do(t, s, http.MethodPost, "/api/v1/session/cookies/save")
	if rec.Code != http.StatusOK || body["saved"] != true || fc.saves != 1 {
		t.Errorf("Unexpected save response %d %v", rec.Code, body)
	}
}

func TestSaveCookiesWithoutSession(t *testing.T) {
	fc := &fakeClient{saveErr: &aliexpress.Error{Kind: aliexpress.KindSessionUnhealthy, Message: "no active session to save"}}
	s := newTestServer(fc)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/session/cookies/save")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeClient{state: session.SessionState{Health: session.Healthy}})
	rec, body := do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %d %v", rec.Code, body)
	}

	s = newTestServer(&fakeClient{state: session.SessionState{Active: true, Health: session.Degraded, CaptchaFailures: 3}})
	rec, body = do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Errorf("Expected unhealthy, got %d %v", rec.Code, body)
	}
}

func TestMetricsAndConfig(t *testing.T) {
	s := newTestServer(&fakeClient{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mtop_session_active") {
		t.Errorf("Expected metrics exposition, got %d", rec.Code)
	}

	_, body := do(t, s, http.MethodGet, "/api/v1/config")
	proxy, _ := body["proxy"].(map[string]interface{})
	if _, leaked := proxy["password"]; leaked {
		t.Error("Expected proxy password to be masked")
	}
}
