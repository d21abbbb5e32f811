// Package signature signs outbound sink requests with HMAC-SHA256.
//
// The signed content is "{timestamp}.{body}" and the signature is sent as
// "v1=<hex>" so receivers can authenticate humes relayed over HTTP.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names set on signed requests.
const (
	HeaderSignature = "X-Hume-Signature"
	HeaderTimestamp = "X-Hume-Timestamp"
)

// Verification errors.
var (
	ErrMissingSignature = errors.New("signature: missing signature headers")
	ErrStaleTimestamp   = errors.New("signature: timestamp outside tolerance")
	ErrBadSignature     = errors.New("signature: mismatch")
)

// Sign returns "v1=<hex>" for the payload, secret and unix timestamp.
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the payload in constant time.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Apply sets the signature headers for body on h.
func Apply(h http.Header, body []byte, secret string, now time.Time) {
	ts := now.Unix()
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, Sign(body, secret, ts))
}

// VerifyRequest checks the headers Apply produced. A zero tolerance skips
// the freshness check.
func VerifyRequest(h http.Header, body []byte, secret string, tolerance time.Duration, now time.Time) error {
	sig := h.Get(HeaderSignature)
	raw := h.Get(HeaderTimestamp)
	if sig == "" || raw == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrMissingSignature, raw)
	}
	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew < -tolerance || skew > tolerance {
			return ErrStaleTimestamp
		}
	}
	if !Verify(body, secret, ts, sig) {
		return ErrBadSignature
	}
	return nil
}
