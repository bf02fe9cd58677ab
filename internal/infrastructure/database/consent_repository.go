package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casabria/booking-security-backend/internal/service/dataprotection"
)

// ConsentRepository persists the append-only consent and processing logs in
// Postgres. There are no UPDATE or DELETE statements here on purpose.
type ConsentRepository struct {
	pool *pgxpool.Pool
}

func NewConsentRepository(pool *pgxpool.Pool) *ConsentRepository {
	return &ConsentRepository{pool: pool}
}

func (r *ConsentRepository) AppendConsent(ctx context.Context, rec dataprotection.ConsentRecord) error {
	query := `
		INSERT INTO consent_records (id, user_id, consent_type, granted, timestamp, ip_address, user_agent, purpose, legal_basis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, string(rec.ConsentType), rec.Granted, rec.Timestamp,
		rec.IPAddress, rec.UserAgent, rec.Purpose, rec.LegalBasis)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (r *ConsentRepository) ListConsent(ctx context.Context, userID string) ([]dataprotection.ConsentRecord, error) {
	query := `
		SELECT id, user_id, consent_type, granted, timestamp, ip_address, user_agent, purpose, legal_basis
		FROM consent_records
		WHERE user_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query consent records: %w", err)
	}
	defer rows.Close()

	var records []dataprotection.ConsentRecord
	for rows.Next() {
		var rec dataprotection.ConsentRecord
		var consentType string
		if err := rows.Scan(&rec.ID, &rec.UserID, &consentType, &rec.Granted, &rec.Timestamp,
			&rec.IPAddress, &rec.UserAgent, &rec.Purpose, &rec.LegalBasis); err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		rec.ConsentType = dataprotection.ConsentType(consentType)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *ConsentRepository) AppendProcessing(ctx context.Context, entry dataprotection.ProcessingLogEntry) error {
	query := `
		INSERT INTO processing_log (id, user_id, purpose, legal_basis, fields, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Purpose, entry.LegalBasis, entry.Fields, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert processing entry: %w", err)
	}
	return nil
}

func (r *ConsentRepository) ListProcessing(ctx context.Context, userID string) ([]dataprotection.ProcessingLogEntry, error) {
	query := `
		SELECT id, user_id, purpose, legal_basis, fields, timestamp
		FROM processing_log
		WHERE user_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query processing log: %w", err)
	}
	defer rows.Close()

	var entries []dataprotection.ProcessingLogEntry
	for rows.Next() {
		var entry dataprotection.ProcessingLogEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Purpose, &entry.LegalBasis,
			&entry.Fields, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan processing entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
