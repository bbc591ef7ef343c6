package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aliscan/pkg/session"
)

// Service identity reported by /health.
const (
	ServiceName    = "aliscan"
	ServiceVersion = "1.0.0"
)

// HealthCheck reports process and session health. A running but degraded
// session answers 503 so load balancers stop routing to it.
func (h *HandlerService) HealthCheck(c *gin.Context) {
	st := h.client.Status()

	sessionCheck := map[string]interface{}{
		"status":                "healthy",
		"active":                st.Session.Active,
		"captcha_failure_count": st.Session.CaptchaFailures,
	}
	status := "healthy"
	code := http.StatusOK
	if st.Session.Active && st.Session.Health == session.Degraded {
		sessionCheck["status"] = string(session.Degraded)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   ServiceName,
		"version":   ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"checks": gin.H{
			"session": sessionCheck,
			"config":  h.checkConfigHealth(),
		},
	})
}

// GetAppConfig returns the configuration with proxy credentials masked.
func (h *HandlerService) GetAppConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.sanitizeConfig())
}

func (h *HandlerService) checkConfigHealth() map[string]interface{} {
	if h.config == nil {
		return map[string]interface{}{
			"status": "unhealthy",
			"error":  "configuration not loaded",
		}
	}
	return map[string]interface{}{
		"status":        "healthy",
		"config_loaded": true,
		"proxy":         h.config.Proxy.Active(),
	}
}

func (h *HandlerService) sanitizeConfig() map[string]interface{} {
	cfg := h.config
	if cfg == nil {
		return map[string]interface{}{}
	}

	out := map[string]interface{}{
		"app":       cfg.App,
		"browser":   cfg.Browser,
		"session":   cfg.Session,
		"api":       cfg.API,
		"server":    cfg.Server,
		"keepalive": cfg.KeepAlive,
	}
	if cfg.Proxy != nil {
		out["proxy"] = map[string]interface{}{
			"enabled":    cfg.Proxy.Enabled,
			"endpoint":   cfg.Proxy.Endpoint,
			"configured": cfg.Proxy.Complete(),
		}
	}
	return out
}
