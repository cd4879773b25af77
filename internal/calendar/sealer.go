package calendar

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts OAuth tokens at rest with XChaCha20-Poly1305. The random
// nonce is prepended to the ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer expects a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("token sealer: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext, additional []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(s.aead.Seal(nonce, nonce, plaintext, additional)), nil
}

// Open reverses Seal. additional must match what was passed to Seal, which
// binds a sealed token to the principal it belongs to.
func (s *Sealer) Open(sealed string, additional []byte) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, ErrCiphertextTooShort
	}
	return s.aead.Open(nil, data[:n], data[n:], additional)
}
