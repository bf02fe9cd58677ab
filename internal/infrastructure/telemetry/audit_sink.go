package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
)

// auditSink writes security events to the structured log and, when a
// repository is configured, persists them. The sink is strictly
// fire-and-forget: persistence failures are logged and swallowed so the
// primary request path never depends on the audit write.
type auditSink struct {
	logger *zap.Logger
	repo   audit.Repository
}

// NewAuditSink builds an audit.Logger backed by zap. repo may be nil.
func NewAuditSink(logger *zap.Logger, repo audit.Repository) audit.Logger {
	return &auditSink{logger: logger.Named("audit"), repo: repo}
}

func (s *auditSink) LogSecurityEvent(ctx context.Context, event audit.Event) {
	defer func() {
		// The sink must never take down a request path.
		_ = recover()
	}()

	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.Time("event_time", event.Timestamp),
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	s.logger.Log(severityToLevel(event.Severity), "security_event", fields...)

	if s.repo != nil {
		if err := s.repo.Insert(ctx, event); err != nil {
			s.logger.Warn("audit event persistence failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func severityToLevel(s audit.Severity) zapcore.Level {
	switch s {
	case audit.SeverityLow:
		return zapcore.InfoLevel
	case audit.SeverityMedium:
		return zapcore.WarnLevel
	case audit.SeverityHigh, audit.SeverityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
