package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// EncryptCredential encrypts a supplier credential with AES-256-GCM.
// keyHex must be 32 bytes (64 hex chars). Output is hex(nonce || ciphertext).
func EncryptCredential(keyHex, plaintext string) (string, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", errors.New("invalid ENC_KEY format")
	}
	if len(key) != 32 {
		return "", errors.New("ENC_KEY must be 32 bytes (64 hex chars) for AES-256")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// DecryptCredential reverses EncryptCredential
func DecryptCredential(keyHex, encrypted string) (string, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", errors.New("invalid ENC_KEY format")
	}
	if len(key) != 32 {
		return "", errors.New("ENC_KEY must be 32 bytes (64 hex chars) for AES-256")
	}

	data, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", errors.New("invalid encrypted credential format")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < aesGCM.NonceSize() {
		return "", errors.New("encrypted credential too short")
	}

	nonce, ciphertext := data[:aesGCM.NonceSize()], data[aesGCM.NonceSize():]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("decryption failed: invalid key or corrupted data")
	}

	return string(plaintext), nil
}
