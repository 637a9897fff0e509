// Package signature signs outbound deliveries and verifies inbound webhooks
// with HMAC-SHA256 over "{timestamp}.{payload}".
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Header names carrying the signature and its timestamp.
const (
	HeaderSignature = "X-Conduit-Signature"
	HeaderTimestamp = "X-Conduit-Timestamp"
)

// DefaultTolerance is how far a timestamp may drift from the verifier's clock.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMissingSignature is returned when either header is absent.
	ErrMissingSignature = errors.New("signature: missing signature or timestamp")

	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("signature: invalid signature")

	// ErrStaleTimestamp is returned when the timestamp is outside the tolerance.
	ErrStaleTimestamp = errors.New("signature: timestamp outside tolerance")
)

// Sign returns "v1=<hex>" for payload signed at timestamp.
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of payload at timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	return hmac.Equal([]byte(Sign(payload, secret, timestamp)), []byte(sig))
}

// VerifyHeaders checks raw header values against payload. The timestamp
// must be within tolerance of now.
func VerifyHeaders(payload []byte, secret, sigHeader, tsHeader string, tolerance time.Duration, now time.Time) error {
	if sigHeader == "" || tsHeader == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrMissingSignature, tsHeader)
	}

	drift := now.Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if tolerance > 0 && drift > tolerance {
		return ErrStaleTimestamp
	}

	if !Verify(payload, secret, ts, sigHeader) {
		return ErrInvalidSignature
	}
	return nil
}

// GenerateSecret returns a random signing secret: "cdsec_" + 64 hex chars.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("signature: failed to generate random secret: " + err.Error())
	}
	return "cdsec_" + hex.EncodeToString(b)
}
