package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// SESNotifier delivers two-factor codes and reset links over email using
// AWS SES.
type SESNotifier struct {
	sesClient    *ses.Client
	fromAddress  string
	resetURLBase string
	logger       *slog.Logger
}

// NewSESNotifier creates a new SES-backed notifier
func NewSESNotifier(region, fromAddress, resetURLBase string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		sesClient:    ses.NewFromConfig(cfg),
		fromAddress:  fromAddress,
		resetURLBase: resetURLBase,
		logger:       logger,
	}, nil
}

// Send delivers the payload for the given kind to the account's email.
func (s *SESNotifier) Send(ctx context.Context, accountEmail string, kind Kind, payload string) error {
	var subject, textBody string

	switch kind {
	case KindTwoFactorCode:
		subject = "Your sign-in code"
		textBody = fmt.Sprintf(`Your sign-in code is: %s

The code expires in 5 minutes and can be used once.

If you did not try to sign in, change your password now.
`, payload)
	case KindResetLink:
		resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.resetURLBase, payload)
		subject = "Reset your password"
		textBody = fmt.Sprintf(`A password reset was requested for your account.

Reset your password here:
%s

The link can be used once. If you did not request a reset, you can ignore
this email; your password will not change.
`, resetLink)
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{accountEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send notification via SES",
			slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("notification sent",
		slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
		slog.String("kind", string(kind)),
		slog.String("message_id", *result.MessageId))

	return nil
}
