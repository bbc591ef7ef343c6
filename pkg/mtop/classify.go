package mtop

import (
	"bytes"
	"strings"
)

// Outcome is the gateway-level verdict on a response.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCaptcha
	OutcomeTokenExpired
	OutcomeAPIError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCaptcha:
		return "captcha"
	case OutcomeTokenExpired:
		return "token_expired"
	default:
		return "api_error"
	}
}

// StatusCaptcha is returned by the gateway when it wants a slider challenge solved.
const StatusCaptcha = 419

var (
	captchaRetCodes = []string{"FAIL_SYS_USER_VALIDATE", "RGV587_ERROR"}
	tokenRetCodes   = []string{
		"FAIL_SYS_TOKEN_EXOIRED", // sic, the gateway spells it this way
		"FAIL_SYS_TOKEN_EXPIRED",
		"FAIL_SYS_TOKEN_EMPTY",
		"FAIL_SYS_ILLEGAL_ACCESS",
	}
	captchaBodyMarkers = [][]byte{
		[]byte("punish"),
		[]byte("x5secdata"),
		[]byte("captcha"),
		[]byte("slide to verify"),
		[]byte("unusual traffic"),
	}
	captchaRedirectMarkers = []string{"_____tmd_____", "punish", "x5secdata"}
)

// IsCaptchaBody reports whether a raw body or status looks like an anti-bot challenge.
func IsCaptchaBody(status int, body []byte) bool {
	if status == StatusCaptcha {
		return true
	}
	lower := bytes.ToLower(body)
	for _, m := range captchaBodyMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsCaptchaRedirect reports whether a 3xx response sends the client to the
// gateway's challenge page.
func IsCaptchaRedirect(status int, location string) bool {
	if status < 300 || status > 399 || location == "" {
		return false
	}
	lower := strings.ToLower(location)
	for _, m := range captchaRedirectMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Classify inspects the ret codes of a decoded envelope. Challenge markers take
// precedence over token codes since a challenged session cannot refresh its token.
func Classify(env *Envelope) Outcome {
	for _, code := range env.Ret {
		for _, c := range captchaRetCodes {
			if strings.HasPrefix(code, c) {
				return OutcomeCaptcha
			}
		}
	}
	for _, code := range env.Ret {
		for _, c := range tokenRetCodes {
			if strings.HasPrefix(code, c) {
				return OutcomeTokenExpired
			}
		}
	}
	for _, code := range env.Ret {
		if strings.Contains(code, "SUCCESS") {
			return OutcomeSuccess
		}
	}
	return OutcomeAPIError
}

// RetMessage joins the ret codes for error messages.
func RetMessage(env *Envelope) string {
	if env == nil || len(env.Ret) == 0 {
		return "empty ret"
	}
	return strings.Join(env.Ret, ", ")
}
