package coupang

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// sign builds the marketplace HMAC-SHA256 request signature over
// method, path, query string, body and millisecond timestamp. The path
// is percent-encoded before signing; the gateway verifies against the
// encoded form.
func sign(secretKey, method, path, queryString, body string, timestampMs int64) string {
	message := strings.Join([]string{
		strings.ToUpper(method),
		encodePath(path),
		queryString,
		body,
		fmt.Sprintf("%d", timestampMs),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodePath percent-encodes every byte outside the RFC 3986 unreserved
// set, slashes included.
func encodePath(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
