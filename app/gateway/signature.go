package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the provider's HMAC over the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// ValidSignature recomputes the HMAC-SHA512 of the raw body under the shared
// secret and compares it to the header value in constant time.
func ValidSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignBody produces the hex HMAC-SHA512 of body. Used by tests and the e2e
// harness to forge well-signed events.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
