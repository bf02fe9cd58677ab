package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
)

// AuditRepository stores security events in Postgres. Inserts are
// best-effort from the caller's perspective: the audit sink logs and
// continues when a write fails.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}

	query := `
		INSERT INTO security_events (id, event_type, severity, timestamp, actor_id, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		event.ID, string(event.Type), string(event.Severity), event.Timestamp,
		event.ActorID, event.IPAddress, event.UserAgent, details)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, event_type, severity, timestamp, actor_id, ip_address, user_agent, details
		FROM security_events
		WHERE actor_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		var eventType, severity string
		var details []byte
		if err := rows.Scan(&event.ID, &eventType, &severity, &event.Timestamp,
			&event.ActorID, &event.IPAddress, &event.UserAgent, &details); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		event.Type = audit.EventType(eventType)
		event.Severity = audit.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal event details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
