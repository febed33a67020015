package gateway

import (
	"strconv"
	"testing"
	"time"

	apperrors "pearlbingo/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestVerifier(t *testing.T) {
	v := NewVerifier("whsec_test", 5*time.Minute)
	now := time.Unix(1_700_000_000, 0)
	v.now = func() time.Time { return now }

	payload := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(ts, payload)

	tests := []struct {
		name      string
		signature string
		timestamp string
		payload   []byte
		wantErr   bool
	}{
		{"valid", sig, ts, payload, false},
		{"valid with scheme prefix", "sha256=" + sig, ts, payload, false},
		{"tampered payload", sig, ts, []byte(`{"id":"evt_1","type":"charge.refunded"}`), true},
		{"wrong signature", v.Sign(ts, []byte("other")), ts, payload, true},
		{"not hex", "zz", ts, payload, true},
		{"empty signature", "", ts, payload, true},
		{"bad timestamp", sig, "yesterday", payload, true},
		{"zero padded timestamp", v.Sign("0"+ts, payload), "0" + ts, payload, false},
		{"padded timestamp signed unpadded", sig, "0" + ts, payload, true},
		{"surrounding whitespace", sig, " " + ts + "\n", payload, false},
		{"replayed", v.Sign(strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), payload),
			strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), payload, true},
		{"from the future", v.Sign(strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), payload),
			strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), payload, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.signature, tt.timestamp, tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifier_EmptySecretRejects(t *testing.T) {
	v := NewVerifier("", time.Minute)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	assert.ErrorIs(t, v.Verify(v.Sign(ts, []byte("{}")), ts, []byte("{}")), apperrors.ErrSignatureInvalid)
}
