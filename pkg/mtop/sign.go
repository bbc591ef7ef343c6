package mtop

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultAppKey is the h5 app key used by the AliExpress PC site.
const DefaultAppKey = "12574478"

// Sign computes the MTOP request signature.
//
// The server recomputes md5(token&t&appKey&data) and rejects the call on any mismatch,
// so the field order and the "&" delimiter are part of the wire contract.
func Sign(token, timestamp, appKey, payload string) string {
	sum := md5.Sum([]byte(token + "&" + timestamp + "&" + appKey + "&" + payload))
	return hex.EncodeToString(sum[:])
}

// SignedRequest carries everything needed to put a signed call on the wire.
// It is built per call and never persisted.
type SignedRequest struct {
	Timestamp string
	Token     string
	AppKey    string
	Payload   string
	Signature string
}

// NewSignedRequest serializes payload (unless it is already a string or raw JSON)
// and signs it with the given token at time now.
func NewSignedRequest(token, appKey string, payload interface{}, now time.Time) (*SignedRequest, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(now.UnixMilli(), 10)
	return &SignedRequest{
		Timestamp: ts,
		Token:     token,
		AppKey:    appKey,
		Payload:   data,
		Signature: Sign(token, ts, appKey, data),
	}, nil
}

func encodePayload(payload interface{}) (string, error) {
	switch p := payload.(type) {
	case string:
		return p, nil
	case json.RawMessage:
		return string(p), nil
	case []byte:
		return string(p), nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", &SignatureError{Err: fmt.Errorf("encode payload: %w", err)}
	}
	return string(b), nil
}
