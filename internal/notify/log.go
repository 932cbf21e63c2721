package notify

import (
	"context"
	"log/slog"

	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// LogNotifier writes notifications to the structured log instead of a real
// channel. Used in development and as the fallback when SES is not
// configured. Payloads are never logged outside development.
type LogNotifier struct {
	logger *slog.Logger
	env    string
}

func NewLogNotifier(logger *slog.Logger, env string) *LogNotifier {
	return &LogNotifier{logger: logger, env: env}
}

func (l *LogNotifier) Send(_ context.Context, accountEmail string, kind Kind, payload string) error {
	attrs := []any{
		slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
		slog.String("kind", string(kind)),
	}
	if l.env != "production" {
		attrs = append(attrs, slog.String("payload", payload))
	}
	l.logger.Info("notification dispatched", attrs...)
	return nil
}
