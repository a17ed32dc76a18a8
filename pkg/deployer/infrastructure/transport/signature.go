package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// request body. With no secret configured verification is disabled and every
// payload is accepted.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return true
	}
	scheme, signature, found := strings.Cut(signatureHeader, "=")
	if !found || scheme != "sha256" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
