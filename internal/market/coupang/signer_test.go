package coupang

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSignIsDeterministic(t *testing.T) {
	a := sign("secret", "POST", "/v2/orders", "vendorId=V1", `{"x":1}`, 1700000000000)
	b := sign("secret", "POST", "/v2/orders", "vendorId=V1", `{"x":1}`, 1700000000000)
	if a != b {
		t.Errorf("same inputs produced different signatures: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(a))
	}
}

func TestSignUppercasesMethod(t *testing.T) {
	lower := sign("secret", "post", "/v2/orders", "", "", 1700000000000)
	upper := sign("secret", "POST", "/v2/orders", "", "", 1700000000000)
	if lower != upper {
		t.Error("method case changed the signature")
	}
}

func TestSignEncodesPathBeforeSigning(t *testing.T) {
	got := sign("secret", "GET", "/v2/orders", "q=1", "", 1700000000000)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("GET\n%2Fv2%2Forders\nq=1\n\n1700000000000"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Errorf("signature = %s, want %s (path not percent-encoded)", got, want)
	}
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/v2/orders", "%2Fv2%2Forders"},
		{"a b", "a%20b"},
		{"abc-._~09", "abc-._~09"},
		{"/orders/ORD%1", "%2Forders%2FORD%251"},
	}
	for _, tt := range tests {
		if got := encodePath(tt.in); got != tt.want {
			t.Errorf("encodePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSignCoversEveryField(t *testing.T) {
	base := sign("secret", "GET", "/path", "q=1", "body", 1700000000000)
	variants := []string{
		sign("other", "GET", "/path", "q=1", "body", 1700000000000),
		sign("secret", "PUT", "/path", "q=1", "body", 1700000000000),
		sign("secret", "GET", "/other", "q=1", "body", 1700000000000),
		sign("secret", "GET", "/path", "q=2", "body", 1700000000000),
		sign("secret", "GET", "/path", "q=1", "other", 1700000000000),
		sign("secret", "GET", "/path", "q=1", "body", 1700000000001),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d did not change the signature", i)
		}
	}
}
