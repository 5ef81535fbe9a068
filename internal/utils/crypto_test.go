package utils

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptCredential(testKey, "supplier-password")
	if err != nil {
		t.Fatalf("EncryptCredential returned error: %v", err)
	}
	if strings.Contains(encrypted, "supplier-password") {
		t.Fatal("ciphertext contains plaintext")
	}

	decrypted, err := DecryptCredential(testKey, encrypted)
	if err != nil {
		t.Fatalf("DecryptCredential returned error: %v", err)
	}
	if decrypted != "supplier-password" {
		t.Errorf("decrypted = %q, want supplier-password", decrypted)
	}
}

func TestEncryptionIsNonDeterministic(t *testing.T) {
	a, err := EncryptCredential(testKey, "same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptCredential(testKey, "same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext are identical; nonce not applied")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	encrypted, err := EncryptCredential(testKey, "secret")
	if err != nil {
		t.Fatal(err)
	}

	wrongKey := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	if _, err := DecryptCredential(wrongKey, encrypted); err == nil {
		t.Error("decryption with the wrong key succeeded")
	}
}

func TestKeyValidation(t *testing.T) {
	if _, err := EncryptCredential("deadbeef", "x"); err == nil {
		t.Error("short key accepted")
	}
	if _, err := EncryptCredential("not-hex", "x"); err == nil {
		t.Error("non-hex key accepted")
	}
	if _, err := DecryptCredential(testKey, "zz"); err == nil {
		t.Error("non-hex ciphertext accepted")
	}
}
