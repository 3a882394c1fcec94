package service

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService derives reset codes from per-request secrets. The TOTP period is
// the code lifetime, so a code stays stable for as long as it is valid.
type TOTPService struct {
	issuer string
	period time.Duration
	digits otp.Digits
}

func NewTOTPService(issuer string, period time.Duration, digits int) *TOTPService {
	d := otp.DigitsSix
	if digits == 8 {
		d = otp.DigitsEight
	}
	return &TOTPService{
		issuer: issuer,
		period: period,
		digits: d,
	}
}

func (s *TOTPService) opts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(s.period / time.Second),
		Skew:      skew,
		Digits:    s.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (s *TOTPService) NewSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: "password-reset",
		Period:      uint(s.period / time.Second),
		Digits:      s.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp key: %w", err)
	}
	return key.Secret(), nil
}

func (s *TOTPService) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, s.opts(0))
}

// Valid accepts the code of the current or an adjacent step. A code issued
// late in one step is still inside its lifetime during the next.
func (s *TOTPService) Valid(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, s.opts(1))
	if err != nil {
		return false
	}
	return ok
}
