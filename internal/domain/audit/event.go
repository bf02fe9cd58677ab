package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a single security audit record. Events are append-only; nothing
// in the system mutates an event after it has been logged.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Severity  Severity               `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	ActorID   string                 `json:"actor_id,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(eventType EventType, severity Severity, details map[string]interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}

// WithActor attaches the acting user/identifier.
func (e Event) WithActor(actorID string) Event {
	e.ActorID = actorID
	return e
}

// WithClient attaches client network metadata.
func (e Event) WithClient(ip, userAgent string) Event {
	e.IPAddress = ip
	e.UserAgent = userAgent
	return e
}

// Logger is the audit sink. Implementations are fire-and-forget: they must
// never return an error to the caller and must never panic, so a failing
// sink cannot abort the primary request path.
type Logger interface {
	LogSecurityEvent(ctx context.Context, event Event)
}

// Repository persists audit events. Writes are best-effort; callers treat
// failures as log-and-continue.
type Repository interface {
	Insert(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actorID string, limit int) ([]Event, error)
}

// NopLogger discards all events. Useful as a default and in tests.
type NopLogger struct{}

func (NopLogger) LogSecurityEvent(ctx context.Context, event Event) {}
