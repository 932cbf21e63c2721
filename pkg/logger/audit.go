package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountEmail  string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts: logins, 2FA verifications,
// lockout transitions.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountEmail != "" {
		attrs = append(attrs, slog.String("account", SanitizedEmail(event.AccountEmail)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogPasswordReset logs reset token issuance and consumption
func (al *AuditLogger) LogPasswordReset(eventType, accountEmail string, success bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "password_reset"),
		slog.String("event_type", eventType),
		slog.Bool("success", success),
		slog.String("account", SanitizedEmail(accountEmail)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogFraudEvent logs payment declines and fraud-block transitions
func (al *AuditLogger) LogFraudEvent(eventType, accountEmail string, declinesInWindow int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "fraud"),
		slog.String("event_type", eventType),
		slog.String("account", SanitizedEmail(accountEmail)),
		slog.Int("declines_in_window", declinesInWindow),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogCheckoutEvent logs coupon applications and rejections
func (al *AuditLogger) LogCheckoutEvent(eventType, sessionID, couponCode string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "checkout"),
		slog.String("event_type", eventType),
		slog.String("session_id", sessionID),
		slog.String("coupon", couponCode),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
