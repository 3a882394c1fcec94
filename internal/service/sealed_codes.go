package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// SealedCodeProvider keeps code secrets encrypted at rest with AES-GCM. The
// sealed hex string is what the account store holds and guards on.
type SealedCodeProvider struct {
	codes CodeProvider
	gcm   cipher.AEAD
}

// NewSealedCodeProvider wraps codes with a 16, 24 or 32 byte AES key.
func NewSealedCodeProvider(codes CodeProvider, key []byte) (*SealedCodeProvider, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid reset secret key: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SealedCodeProvider{codes: codes, gcm: gcm}, nil
}

func (p *SealedCodeProvider) NewSecret() (string, error) {
	secret, err := p.codes.NewSecret()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, p.gcm.NonceSize())
	_, err = io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce is stored in front of the ciphertext
	sealed := p.gcm.Seal(nonce, nonce, []byte(secret), nil)
	return hex.EncodeToString(sealed), nil
}

func (p *SealedCodeProvider) Code(sealed string, at time.Time) (string, error) {
	secret, err := p.open(sealed)
	if err != nil {
		return "", err
	}
	return p.codes.Code(secret, at)
}

// Valid reports false for secrets that cannot be opened, e.g. ones written
// under another key.
func (p *SealedCodeProvider) Valid(code, sealed string, at time.Time) bool {
	secret, err := p.open(sealed)
	if err != nil {
		slog.Error("failed to open password reset secret", "error", err)
		return false
	}
	return p.codes.Valid(code, secret, at)
}

func (p *SealedCodeProvider) open(sealed string) (string, error) {
	data, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed secret: %w", err)
	}

	size := p.gcm.NonceSize()
	if len(data) < size {
		return "", errors.New("sealed secret too short")
	}

	secret, err := p.gcm.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return "", errors.New("sealed secret could not be opened (wrong key or tampered data)")
	}
	return string(secret), nil
}
