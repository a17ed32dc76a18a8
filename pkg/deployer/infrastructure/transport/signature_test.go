package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	tests := []struct {
		name      string
		signature string
		secret    string
		want      bool
	}{
		{name: "valid signature", signature: signBody(body, "hook-secret"), secret: "hook-secret", want: true},
		{name: "wrong secret", signature: signBody(body, "other-secret"), secret: "hook-secret", want: false},
		{name: "tampered body", signature: signBody([]byte("{}"), "hook-secret"), secret: "hook-secret", want: false},
		{name: "wrong scheme", signature: "sha1=deadbeef", secret: "hook-secret", want: false},
		{name: "no scheme separator", signature: "deadbeef", secret: "hook-secret", want: false},
		{name: "empty header", signature: "", secret: "hook-secret", want: false},
		{name: "verification disabled without secret", signature: "", secret: "", want: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, VerifySignature(body, test.signature, test.secret))
		})
	}
}
