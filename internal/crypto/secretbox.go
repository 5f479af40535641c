// Package crypto provides at-rest encryption for stored exchange API secrets
// and HMAC signing helpers for exchange REST requests.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the sealed-secret JSON schema version.
	currentVersion = 1
)

// sealedSecretJSON is the stored format for an encrypted secret.
type sealedSecretJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// SecretBox encrypts and decrypts short secrets (exchange API secrets) with
// a key derived from an operator-supplied passphrase. Each sealed secret
// carries its own random salt, so identical plaintexts never produce
// identical ciphertexts.
type SecretBox struct {
	passphrase []byte
}

// NewSecretBox creates a SecretBox from the master passphrase.
func NewSecretBox(passphrase string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: passphrase must not be empty")
	}
	return &SecretBox{passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext using PBKDF2-HMAC-SHA256 key derivation and
// AES-256-GCM authenticated encryption, returning a JSON envelope suitable
// for storing in a text column.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out := sealedSecretJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("crypto: encoding sealed secret: %w", err)
	}
	return string(data), nil
}

// Open decrypts a JSON envelope produced by Seal, returning the plaintext.
func (b *SecretBox) Open(sealed string) (string, error) {
	var stored sealedSecretJSON
	if err := json.Unmarshal([]byte(sealed), &stored); err != nil {
		return "", fmt.Errorf("crypto: parsing sealed secret: %w", err)
	}
	if stored.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong passphrase?): %w", err)
	}

	return string(plaintext), nil
}

// aead derives the AES key for the given salt and builds the GCM cipher.
func (b *SecretBox) aead(salt []byte) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key(b.passphrase, salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
