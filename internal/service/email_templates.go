package service

import (
	"fmt"
	"math"
	"time"
)

func greeting(name string) string {
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func passwordResetCodeTemplate(name, code string, ttl time.Duration, appName string) (string, string) {
	minutes := int(math.Ceil(ttl.Minutes()))
	subject := fmt.Sprintf("Your %s password reset code", appName)
	body := fmt.Sprintf(`%s

Use this code to reset your password:

    %s

The code expires in %d minutes and can only be used once.

If you didn't request a password reset, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, greeting(name), code, minutes, appName)

	return subject, body
}

func passwordChangedTemplate(name, supportEmail, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s password was changed", appName)
	body := fmt.Sprintf(`%s

The password for your %s account was just changed using a reset code.

If this wasn't you, contact us right away at %s.

Best,
The %s Team`, greeting(name), appName, supportEmail, appName)

	return subject, body
}
