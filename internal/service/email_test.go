package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmailServiceDevModeLogsOnly(t *testing.T) {
	s := NewEmailService("re_test", "noreply@example.com", "Balug", "help@example.com", 5*time.Minute, true)

	assert.NoError(t, s.SendPasswordResetCode(context.Background(), "user@example.com", "User", "123456"))
	assert.NoError(t, s.SendPasswordChanged(context.Background(), "user@example.com", "User"))
}

func TestEmailServiceUnconfigured(t *testing.T) {
	s := NewEmailService("", "noreply@example.com", "Balug", "help@example.com", 5*time.Minute, false)

	err := s.SendPasswordResetCode(context.Background(), "user@example.com", "User", "123456")
	assert.ErrorContains(t, err, "RESEND_API_KEY")
}

func TestPasswordResetCodeTemplate(t *testing.T) {
	subject, body := passwordResetCodeTemplate("Ana", "042917", 5*time.Minute, "Balug")

	assert.Equal(t, "Your Balug password reset code", subject)
	assert.Contains(t, body, "Hi Ana,")
	assert.Contains(t, body, "042917")
	assert.Contains(t, body, "expires in 5 minutes")
}

func TestPasswordChangedTemplateWithoutName(t *testing.T) {
	_, body := passwordChangedTemplate("", "help@example.com", "Balug")

	assert.Contains(t, body, "Hi,")
	assert.Contains(t, body, "help@example.com")
}
