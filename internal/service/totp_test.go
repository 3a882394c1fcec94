package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPServiceRoundTrip(t *testing.T) {
	s := NewTOTPService("Balug", 5*time.Minute, 6)

	secret, err := s.NewSecret()
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	code, err := s.Code(secret, at)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)

	assert.True(t, s.Valid(code, secret, at))
	assert.True(t, s.Valid(code, secret, at.Add(4*time.Minute)), "valid until the end of its lifetime")
	assert.False(t, s.Valid(code, secret, at.Add(time.Hour)))
}

func TestTOTPServiceSecretsAreUnique(t *testing.T) {
	s := NewTOTPService("Balug", 5*time.Minute, 6)

	seen := map[string]bool{}
	for range 20 {
		secret, err := s.NewSecret()
		require.NoError(t, err)
		assert.False(t, seen[secret])
		seen[secret] = true
	}
}

func TestTOTPServiceRejectsMalformedCodes(t *testing.T) {
	s := NewTOTPService("Balug", 5*time.Minute, 6)
	secret, err := s.NewSecret()
	require.NoError(t, err)

	at := time.Now()
	code, err := s.Code(secret, at)
	require.NoError(t, err)

	assert.False(t, s.Valid("", secret, at))
	assert.False(t, s.Valid("12345", secret, at))
	assert.False(t, s.Valid(" "+code, secret, at))
	assert.False(t, s.Valid("abcdef", secret, at))
}

func TestTOTPServiceCodesDependOnSecret(t *testing.T) {
	s := NewTOTPService("Balug", 5*time.Minute, 6)
	a, err := s.NewSecret()
	require.NoError(t, err)
	b, err := s.NewSecret()
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	codeA, err := s.Code(a, at)
	require.NoError(t, err)

	assert.True(t, s.Valid(codeA, a, at))
	codeB, err := s.Code(b, at)
	require.NoError(t, err)
	if codeA != codeB {
		assert.False(t, s.Valid(codeA, b, at))
	}
}
