package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "shpss_test_secret"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify_ValidSignature(t *testing.T) {
	body := []byte(`{"id":820982911946154508,"name":"#1001","line_items":[{"sku":"42","quantity":1}]}`)

	assert.True(t, Verify(testSecret, body, signBody(testSecret, body)))
	assert.Equal(t, signBody(testSecret, body), Sign(testSecret, body))
}

func TestVerify_AnySingleByteMutationFails(t *testing.T) {
	body := []byte(`{"id":1,"name":"#1001","email":"a@b.co"}`)
	header := Sign(testSecret, body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.Falsef(t, Verify(testSecret, mutated, header), "mutation at byte %d verified", i)
	}
}

func TestVerify_RejectsBadInputs(t *testing.T) {
	body := []byte(`{"id":1}`)
	valid := Sign(testSecret, body)

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{name: "unconfigured secret", secret: "", header: valid},
		{name: "missing header", secret: testSecret, header: ""},
		{name: "blank header", secret: testSecret, header: "   "},
		{name: "not base64", secret: testSecret, header: "%%%not-base64%%%"},
		{name: "truncated digest", secret: testSecret, header: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "wrong secret", secret: "other", header: valid},
		{name: "hex instead of base64", secret: testSecret, header: "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Verify(tt.secret, body, tt.header))
		})
	}
}

func TestVerify_UsesRawBytesNotReserialized(t *testing.T) {
	raw := []byte(`{"name": "#1001",   "id": 1}`)
	compact := []byte(`{"name":"#1001","id":1}`)

	header := Sign(testSecret, raw)
	assert.True(t, Verify(testSecret, raw, header))
	assert.False(t, Verify(testSecret, compact, header))
}

func TestTokenMatches(t *testing.T) {
	assert.True(t, TokenMatches("tok", "tok"))
	assert.False(t, TokenMatches("tok", "tok2"))
	assert.False(t, TokenMatches("tok", ""))
	assert.False(t, TokenMatches("", ""))
}
