package spot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the lowercase hex HMAC-SHA256 digest Binance expects over
// the canonical request payload. Deterministic and stateless; the payload
// must already be in its final percent-encoded form.
func Sign(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
