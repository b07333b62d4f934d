// Package crypto provides the symmetric cipher used to store message bodies
// at rest. The cipher is keyed by a single process-wide secret; the key is
// derived with HKDF-SHA256 and payloads are sealed with ChaCha20-Poly1305.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const cipherInfo = "interact-message-v1"

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher encrypts and decrypts message bodies.
type Cipher struct {
	key []byte
}

// NewCipher derives an encryption key from the process-wide secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("message secret must not be empty")
	}

	hkdfReader := hkdf.New(sha256.New, []byte(secret), nil, []byte(cipherInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and returns the base64 wire form nonce||ciphertext.
// A random nonce is drawn per call, so equal plaintexts produce distinct
// ciphertexts.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	wire := make([]byte, 0, len(nonce)+len(sealed))
	wire = append(wire, nonce...)
	wire = append(wire, sealed...)

	return base64.StdEncoding.EncodeToString(wire), nil
}

// Decrypt opens a base64 ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	wire, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64 encoding", ErrInvalidCiphertext)
	}

	minLen := chacha20poly1305.NonceSize + chacha20poly1305.Overhead
	if len(wire) < minLen {
		return "", fmt.Errorf("%w: %d bytes, minimum %d", ErrInvalidCiphertext, len(wire), minLen)
	}

	nonce := wire[:chacha20poly1305.NonceSize]
	sealed := wire[chacha20poly1305.NonceSize:]

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or tampered data", ErrInvalidCiphertext)
	}

	return string(plaintext), nil
}
