package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client       *resend.Client
	fromEmail    string
	isDev        bool
	appName      string
	supportEmail string
	codeTTL      time.Duration
}

func NewEmailService(apiKey, fromEmail, appName, supportEmail string, codeTTL time.Duration, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:       client,
		fromEmail:    fromEmail,
		isDev:        isDev,
		appName:      appName,
		supportEmail: supportEmail,
		codeTTL:      codeTTL,
	}
}

func (s *EmailService) SendPasswordResetCode(ctx context.Context, email, name, code string) error {
	subject, body := passwordResetCodeTemplate(name, code, s.codeTTL, s.appName)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "password_reset_code", "to", email, "subject", subject, "code", code)
		return nil
	}

	return s.send(ctx, "password_reset_code", email, subject, body)
}

func (s *EmailService) SendPasswordChanged(ctx context.Context, email, name string) error {
	subject, body := passwordChangedTemplate(name, s.supportEmail, s.appName)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "password_changed", "to", email, "subject", subject)
		return nil
	}

	return s.send(ctx, "password_changed", email, subject, body)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}
