package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// Mailer delivers password reset links
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// sesAPI is the subset of the SES client the mailer uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client       sesAPI
	fromAddress  string
	resetURLBase string
	logger       *slog.Logger
}

// NewSESMailer loads the default AWS credential chain for region
func NewSESMailer(region, fromAddress, resetURLBase string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESMailer(ses.NewFromConfig(cfg), fromAddress, resetURLBase, logger), nil
}

func newSESMailer(client sesAPI, fromAddress, resetURLBase string, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:       client,
		fromAddress:  fromAddress,
		resetURLBase: resetURLBase,
		logger:       logger,
	}
}

// ResetLink builds the URL a user follows to choose a new password
func (m *SESMailer) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", m.resetURLBase, url.QueryEscape(token))
}

// SendPasswordReset emails a reset link valid until expiresAt
func (m *SESMailer) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := m.ResetLink(token)
	validFor := time.Until(expiresAt).Round(time.Minute)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Reset Your Password</h1>
        <p>Someone requested a password reset for your account. If this was you, follow the link below:</p>
        <p><a href="%s" class="button">Choose a new password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This link expires in %s and can be used once.</p>
        <p>If you did not request a reset, you can ignore this email. Your password will not change.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, link, link, validFor)

	textBody := fmt.Sprintf(`Reset Your Password

Someone requested a password reset for your account. If this was you, open the link below:

%s

This link expires in %s and can be used once.

If you did not request a reset, you can ignore this email. Your password will not change.
`, link, validFor)

	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Password reset request"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send password reset email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
