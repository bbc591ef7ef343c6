// Package session owns the browser-backed MTOP session: its lifecycle and its health.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// DefaultMaxCaptchaAttempts is the consecutive CAPTCHA count that forces a restart.
const DefaultMaxCaptchaAttempts = 3

// DefaultProbeTimeout bounds a single liveness probe.
const DefaultProbeTimeout = 10 * time.Second

// Health is the coarse monitor state.
type Health string

const (
	Healthy  Health = "healthy"
	Degraded Health = "degraded"
)

// Prober checks that a browser context still responds.
type Prober interface {
	Probe(ctx context.Context) error
}

// SessionState is a point-in-time view of the session.
type SessionState struct {
	Active             bool   `json:"active"`
	Health             Health `json:"health"`
	CaptchaFailures    int    `json:"captcha_failure_count"`
	MaxCaptchaAttempts int    `json:"max_captcha_attempts"`
}

// Monitor counts consecutive CAPTCHA failures. It is Degraded once the count
// reaches the configured maximum and stays so until a success or reset.
type Monitor struct {
	mu           sync.Mutex
	failures     int
	max          int
	probeTimeout time.Duration
}

// NewMonitor creates a Healthy monitor. Non-positive values fall back to defaults.
func NewMonitor(maxAttempts int, probeTimeout time.Duration) *Monitor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCaptchaAttempts
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Monitor{max: maxAttempts, probeTimeout: probeTimeout}
}

// RecordFailure counts one CAPTCHA challenge.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	m.failures++
	count := m.failures
	m.mu.Unlock()

	if count >= m.max {
		logger.Warn("CAPTCHA limit reached, session degraded",
			zap.Int("captcha_failures", count), zap.Int("max", m.max))
	} else {
		logger.Debug("CAPTCHA recorded", zap.Int("captcha_failures", count), zap.Int("max", m.max))
	}
}

// RecordSuccess clears the failure counter.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
}

// Reset clears the failure counter after a restart.
func (m *Monitor) Reset() {
	m.RecordSuccess()
}

// ShouldRestart reports whether the session is Degraded. It has no side effects.
func (m *Monitor) ShouldRestart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures >= m.max
}

// Failures returns the current consecutive CAPTCHA count.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// State returns a snapshot. Active is filled in by the controller.
func (m *Monitor) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Healthy
	if m.failures >= m.max {
		h = Degraded
	}
	return SessionState{Health: h, CaptchaFailures: m.failures, MaxCaptchaAttempts: m.max}
}

// ProbeHealth runs p under the probe timeout. A false result means the session
// must be restarted regardless of the failure counter.
func (m *Monitor) ProbeHealth(ctx context.Context, p Prober) bool {
	if p == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	if err := p.Probe(pctx); err != nil {
		logger.FromContext(ctx).Warn("Session health probe failed",
			zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return false
	}
	return true
}
