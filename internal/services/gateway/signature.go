package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	apperrors "pearlbingo/internal/errors"
)

// Verifier checks webhook signatures: hex HMAC-SHA256 over timestamp+payload.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign returns the signature the gateway is expected to send.
func (v *Verifier) Sign(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify rejects bad signatures and timestamps outside the tolerance window.
func (v *Verifier) Verify(signature, timestamp string, payload []byte) error {
	if len(v.secret) == 0 {
		return apperrors.New(apperrors.CodeSignatureInvalid, "webhook secret not configured")
	}

	timestamp = strings.TrimSpace(timestamp)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperrors.New(apperrors.CodeSignatureInvalid, "invalid webhook timestamp")
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return apperrors.New(apperrors.CodeSignatureInvalid, "webhook timestamp outside tolerance")
	}

	given, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(given) == 0 {
		return apperrors.ErrSignatureInvalid
	}
	expected, _ := hex.DecodeString(v.Sign(timestamp, payload))
	if !hmac.Equal(given, expected) {
		return apperrors.ErrSignatureInvalid
	}
	return nil
}
