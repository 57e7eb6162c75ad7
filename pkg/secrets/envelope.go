// Package secrets implements the envelope-encrypted secret store: a
// process-wide KEK wraps a fresh per-secret DEK, the DEK seals the
// secret value, and every decrypt/rotate is audited.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	kekSize  = 32 // AES-256
	dekSize  = 32
	saltSize = 16
	hkdfInfo = "rcrt-secret-dek-wrap"
)

// KEK is the process-wide key-encryption key, loaded once at startup from
// configuration and held only in memory.
type KEK struct {
	key []byte
}

// LoadKEK decodes a base64-encoded 32-byte key-encryption key.
func LoadKEK(base64Key string) (*KEK, error) {
	if base64Key == "" {
		return nil, errors.New("secrets KEK must not be empty")
	}
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode KEK: %w", err)
	}
	if len(raw) != kekSize {
		return nil, fmt.Errorf("KEK must decode to %d bytes, got %d", kekSize, len(raw))
	}
	return &KEK{key: raw}, nil
}

// sealed is ciphertext produced by AES-256-GCM: nonce prepended to the
// sealed bytes.
type sealed struct {
	nonce      []byte
	ciphertext []byte
}

func seal(key, plaintext []byte) (sealed, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return sealed{}, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return sealed{}, fmt.Errorf("create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return sealed{}, fmt.Errorf("generate nonce: %w", err)
	}
	return sealed{nonce: nonce, ciphertext: gcm.Seal(nil, nonce, plaintext, nil)}, nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return plaintext, nil
}

// envelope holds the pieces persisted to the secrets table.
type envelope struct {
	ciphertext []byte
	nonce      []byte
	wrappedDEK []byte
	dekSalt    []byte
}

// encryptValue generates a fresh DEK, seals plaintext with it, then wraps
// the DEK under a salt-derived key from the KEK via HKDF-SHA256.
func (k *KEK) encryptValue(plaintext string) (envelope, error) {
	dek := make([]byte, dekSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return envelope{}, fmt.Errorf("generate DEK: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return envelope{}, fmt.Errorf("generate salt: %w", err)
	}

	wrapKey, err := deriveWrapKey(k.key, salt)
	if err != nil {
		return envelope{}, err
	}

	wrappedSealed, err := seal(wrapKey, dek)
	if err != nil {
		return envelope{}, fmt.Errorf("wrap DEK: %w", err)
	}
	valueSealed, err := seal(dek, []byte(plaintext))
	if err != nil {
		return envelope{}, fmt.Errorf("seal value: %w", err)
	}

	return envelope{
		ciphertext: valueSealed.ciphertext,
		nonce:      valueSealed.nonce,
		wrappedDEK: append(wrappedSealed.nonce, wrappedSealed.ciphertext...),
		dekSalt:    salt,
	}, nil
}

// decryptValue unwraps the DEK under the salt-derived key, then opens the
// sealed secret value.
func (k *KEK) decryptValue(env envelope) (string, error) {
	wrapKey, err := deriveWrapKey(k.key, env.dekSalt)
	if err != nil {
		return "", err
	}

	nonceSize, err := gcmNonceSize()
	if err != nil {
		return "", err
	}
	if len(env.wrappedDEK) < nonceSize {
		return "", errors.New("wrapped DEK too short")
	}
	dek, err := open(wrapKey, env.wrappedDEK[:nonceSize], env.wrappedDEK[nonceSize:])
	if err != nil {
		return "", fmt.Errorf("unwrap DEK: %w", err)
	}

	plaintext, err := open(dek, env.nonce, env.ciphertext)
	if err != nil {
		return "", fmt.Errorf("open secret value: %w", err)
	}
	return string(plaintext), nil
}

func deriveWrapKey(kek, salt []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, kek, salt, []byte(hkdfInfo))
	wrapKey := make([]byte, dekSize)
	if _, err := io.ReadFull(reader, wrapKey); err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	return wrapKey, nil
}

func gcmNonceSize() (int, error) {
	block, err := aes.NewCipher(make([]byte, kekSize))
	if err != nil {
		return 0, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, err
	}
	return gcm.NonceSize(), nil
}
