// Package envelope implements the authenticated encryption used to protect
// user secret seeds at rest. A single process-wide 32-byte master key seals
// each seed with AES-256-GCM; the nonce and authentication tag are stored
// alongside the ciphertext so that flipping any byte of any of the three
// fails decryption closed.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	apperrors "github.com/lumensave/lumensave/pkg/errors"
)

const (
	// KeySize is the required master key length (AES-256).
	KeySize = 32

	// NonceSize is the GCM nonce length. A fresh random nonce is drawn for
	// every encryption; reuse under the same key breaks GCM entirely.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// SealedSecret is the output of one encryption: ciphertext plus the
// metadata required to decrypt it. The three fields are only meaningful
// together.
type SealedSecret struct {
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
}

// Cipher seals and opens secrets under one long-lived master key.
// The key length is validated once at construction, not per call.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte master key. Any other length
// fails with ErrInvalidKeyLength so a misconfigured process refuses to
// initialize rather than failing on first use.
func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != KeySize {
		return nil, apperrors.ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under the master key. The nonce is always drawn
// from crypto/rand inside this call; callers cannot supply one.
func (c *Cipher) Encrypt(plaintext []byte) (*SealedSecret, error) {
	if len(plaintext) == 0 {
		return nil, apperrors.MalformedInput("empty plaintext")
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)

	// Seal appends the tag to the ciphertext; split them so each column is
	// independently tamper-evident in storage.
	split := len(sealed) - TagSize
	return &SealedSecret{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		AuthTag:    sealed[split:],
	}, nil
}

// Decrypt opens a sealed secret. The tag is verified before any plaintext
// is released: a mismatch returns an authentication failure and no partial
// output. Wrong nonce or tag lengths fail as malformed input.
func (c *Cipher) Decrypt(sealed *SealedSecret) ([]byte, error) {
	if sealed == nil || len(sealed.Ciphertext) == 0 {
		return nil, apperrors.MalformedInput("empty ciphertext")
	}
	if len(sealed.Nonce) != NonceSize {
		return nil, apperrors.MalformedInput(fmt.Sprintf("nonce length %d, want %d", len(sealed.Nonce), NonceSize))
	}
	if len(sealed.AuthTag) != TagSize {
		return nil, apperrors.MalformedInput(fmt.Sprintf("tag length %d, want %d", len(sealed.AuthTag), TagSize))
	}

	buf := make([]byte, 0, len(sealed.Ciphertext)+TagSize)
	buf = append(buf, sealed.Ciphertext...)
	buf = append(buf, sealed.AuthTag...)

	plaintext, err := c.aead.Open(nil, sealed.Nonce, buf, nil)
	if err != nil {
		// The underlying GCM error never reaches callers; the failure mode
		// must be uniform and carry no hint about the inputs.
		return nil, apperrors.ErrAuthenticationFailure
	}

	return plaintext, nil
}

// Zero overwrites b. Best-effort scrubbing for transient plaintext copies.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
