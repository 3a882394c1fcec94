package validation

import (
	"errors"
)

var ErrCodeFormat = errors.New("code must be 6 or 8 digits")

// ValidateResetCode checks the shape of a submitted reset code
func ValidateResetCode(code string) error {
	if len(code) != 6 && len(code) != 8 {
		return ErrCodeFormat
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrCodeFormat
		}
	}
	return nil
}
