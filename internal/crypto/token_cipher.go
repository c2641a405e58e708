// Package crypto seals committed authentication proofs for storage at
// rest. One root key, held in locked memory, is expanded per purpose with
// HKDF; blobs are sealed with XChaCha20-Poly1305.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const tokenKeyInfo = "argus-token-seal-v1"

var (
	ErrInvalidCipherInput = errors.New("invalid cipher input")
	ErrUnsealFailed       = errors.New("unseal failed")
)

// TokenCipher seals and unseals auth-proof blobs. The sealing key is
// derived once from the root key and kept in a locked buffer for the
// cipher's lifetime.
type TokenCipher struct {
	key *memguard.LockedBuffer
}

// NewTokenCipher derives the token sealing key from a root key and salt.
// The caller keeps ownership of rootKey.
func NewTokenCipher(rootKey, salt []byte) (*TokenCipher, error) {
	if len(rootKey) == 0 {
		return nil, fmt.Errorf("%w: root key must not be empty", ErrInvalidCipherInput)
	}

	r := hkdf.New(sha256.New, rootKey, salt, []byte(tokenKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}

	buffer := memguard.NewBufferFromBytes(key)
	memguard.WipeBytes(key)
	return &TokenCipher{key: buffer}, nil
}

// Seal encrypts the token with a random nonce, binding aad. The nonce is
// prepended to the returned blob.
func (c *TokenCipher) Seal(token, aad []byte) ([]byte, error) {
	if len(token) == 0 {
		return nil, fmt.Errorf("%w: token must not be empty", ErrInvalidCipherInput)
	}

	aead, err := chacha20poly1305.NewX(c.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("construct xchacha20-poly1305: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, token, aad), nil
}

// Unseal reverses Seal.
func (c *TokenCipher) Unseal(blob, aad []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: blob too short", ErrInvalidCipherInput)
	}

	aead, err := chacha20poly1305.NewX(c.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("construct xchacha20-poly1305: %w", err)
	}

	nonce, ciphertext := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	token, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	return token, nil
}

// Destroy wipes the derived key. The cipher is unusable afterwards.
func (c *TokenCipher) Destroy() {
	if c.key != nil {
		c.key.Destroy()
		c.key = nil
	}
}
