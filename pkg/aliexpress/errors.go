package aliexpress

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the client. A corrupt cookie store is not
// among them: the controller recovers from it by starting with no cookies.
type Kind string

const (
	KindSignature        Kind = "SignatureComputationError"
	KindBrowserLaunch    Kind = "BrowserLaunchError"
	KindSessionUnhealthy Kind = "SessionUnhealthy"
	KindCaptcha          Kind = "CaptchaChallenge"
	KindAuthTokenExpired Kind = "AuthTokenExpired"
	KindNetwork          Kind = "NetworkError"
	KindAPI              Kind = "ApiError"
	KindInvalidProductID Kind = "InvalidProductID"
)

// Sentinels matched by (*Error).Is.
var (
	ErrSignature        = errors.New("aliexpress: signature computation failed")
	ErrBrowserLaunch    = errors.New("aliexpress: browser launch failed")
	ErrSessionUnhealthy = errors.New("aliexpress: session unhealthy")
	ErrCaptchaChallenge = errors.New("aliexpress: captcha challenge")
	ErrAuthTokenExpired = errors.New("aliexpress: auth token expired")
	ErrNetwork          = errors.New("aliexpress: network error")
	ErrAPI              = errors.New("aliexpress: api error")
	ErrInvalidProductID = errors.New("aliexpress: invalid product id")
)

var kindSentinels = map[Kind]error{
	KindSignature:        ErrSignature,
	KindBrowserLaunch:    ErrBrowserLaunch,
	KindSessionUnhealthy: ErrSessionUnhealthy,
	KindCaptcha:          ErrCaptchaChallenge,
	KindAuthTokenExpired: ErrAuthTokenExpired,
	KindNetwork:          ErrNetwork,
	KindAPI:              ErrAPI,
	KindInvalidProductID: ErrInvalidProductID,
}

// Error is returned for every failed client call.
type Error struct {
	Kind    Kind
	Message string
	TraceID string
	// Response is the last classified response, when one was received.
	Response *RawResponse
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.TraceID != "" {
		msg += " (trace_id=" + e.TraceID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Retryable reports whether the client retries this kind within its attempt budget.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindCaptcha, KindAuthTokenExpired, KindNetwork, KindSessionUnhealthy:
		return true
	default:
		return false
	}
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" if it did not come from the client.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
