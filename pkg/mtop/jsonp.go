package mtop

import (
	"bytes"
	"encoding/json"
	"regexp"
)

var jsonpPattern = regexp.MustCompile(`(?s)^\s*[A-Za-z_$][A-Za-z0-9_$.]*\s*\(\s*(.*?)\s*\)\s*;?\s*$`)

// UnwrapJSONP strips a "callback(...)" wrapper and returns the inner JSON text.
// A body that is already a bare JSON object is returned unchanged.
func UnwrapJSONP(body []byte) ([]byte, error) {
	if m := jsonpPattern.FindSubmatch(body); m != nil {
		return m[1], nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 1 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		return trimmed, nil
	}
	return nil, ErrNoEnvelope
}

// Envelope is the common MTOP response shape.
type Envelope struct {
	API     string                 `json:"api"`
	Version string                 `json:"v"`
	Ret     []string               `json:"ret"`
	Data    map[string]interface{} `json:"data"`
	TraceID string                 `json:"traceId"`
}

// DecodeEnvelope unwraps and decodes a JSONP body.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	inner, err := UnwrapJSONP(body)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(inner, &env); err != nil {
		return nil, &ParseError{Snippet: snippet(inner), Err: err}
	}
	return &env, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
