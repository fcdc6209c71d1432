// Package signature authenticates inbound webhooks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const (
	// HeaderHMAC carries the base64 HMAC-SHA256 of the raw body.
	HeaderHMAC = "X-Shopify-Hmac-Sha256"
	// HeaderAPIKey carries the static token on warehouse notifications.
	HeaderAPIKey = "apikey"
)

// Verify reports whether header is the base64 HMAC-SHA256 of rawBody keyed
// by secret. rawBody must be the bytes exactly as received. Any missing or
// malformed input yields false.
func Verify(secret string, rawBody []byte, header string) bool {
	if secret == "" {
		return false
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}

	provided, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(provided, digest(secret, rawBody)) == 1
}

// Sign returns the header value the storefront would send for rawBody.
func Sign(secret string, rawBody []byte) string {
	return base64.StdEncoding.EncodeToString(digest(secret, rawBody))
}

// TokenMatches compares a static shared token in constant time.
// An unconfigured expected token never matches.
func TokenMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func digest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
