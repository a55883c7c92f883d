package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Stored key material layout: base64(salt[16] || nonce[12] || aes-gcm ciphertext).
// The AES key is derived per row from the master secret with Argon2id.
const (
	saltLen  = 16
	nonceLen = 12
)

var errCiphertextShape = errors.New("malformed credential ciphertext")

func deriveKey(master string, salt []byte) []byte {
	return argon2.IDKey([]byte(master), salt, 1, 64*1024, 4, 32)
}

// EncryptKey seals a provider API key under the master secret.
func EncryptKey(master, plaintext string) (string, error) {
	if master == "" {
		return "", fmt.Errorf("op=credentials.EncryptKey: master key unset")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("op=credentials.EncryptKey: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(master, salt))
	if err != nil {
		return "", fmt.Errorf("op=credentials.EncryptKey: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("op=credentials.EncryptKey: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("op=credentials.EncryptKey: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, saltLen+nonceLen+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptKey opens a sealed provider API key.
func DecryptKey(master, ciphertext string) (string, error) {
	if master == "" {
		return "", fmt.Errorf("op=credentials.DecryptKey: master key unset")
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("op=credentials.DecryptKey: %w", err)
	}
	if len(raw) < saltLen+nonceLen+1 {
		return "", fmt.Errorf("op=credentials.DecryptKey: %w", errCiphertextShape)
	}
	salt, nonce, sealed := raw[:saltLen], raw[saltLen:saltLen+nonceLen], raw[saltLen+nonceLen:]
	block, err := aes.NewCipher(deriveKey(master, salt))
	if err != nil {
		return "", fmt.Errorf("op=credentials.DecryptKey: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("op=credentials.DecryptKey: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("op=credentials.DecryptKey: %w", err)
	}
	return string(plain), nil
}
