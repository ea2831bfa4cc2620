package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.completed"}`)
	secret := "whsec_test"

	sig := signPayload(payload, secret)
	assert.True(t, VerifyWebhookSignature(payload, sig, secret))
}

func TestVerifyWebhookSignature_Sha256Prefix(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	sig := "sha256=" + signPayload(payload, secret)
	assert.True(t, VerifyWebhookSignature(payload, sig, secret))
}

func TestVerifyWebhookSignature_UppercaseHex(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	sig := strings.ToUpper(signPayload(payload, secret))
	assert.True(t, VerifyWebhookSignature(payload, sig, secret))
}

func TestVerifyWebhookSignature_Invalid(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	tests := []struct {
		name string
		sig  string
	}{
		{"empty signature", ""},
		{"not hex", "zzzz"},
		{"wrong signature", signPayload([]byte("other body"), secret)},
		{"wrong secret", signPayload(payload, "different secret")},
		{"truncated", signPayload(payload, secret)[:16]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyWebhookSignature(payload, tt.sig, secret))
		})
	}
}

func TestVerifyWebhookSignature_EmptySecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	sig := signPayload(payload, "whsec_test")
	assert.False(t, VerifyWebhookSignature(payload, sig, ""))
}
