package dataprotection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConsentType categorizes what the user agreed to.
type ConsentType string

const (
	ConsentMarketing  ConsentType = "marketing"
	ConsentAnalytics  ConsentType = "analytics"
	ConsentFunctional ConsentType = "functional"
	ConsentBooking    ConsentType = "booking"
)

// ConsentRecord is one entry in the append-only consent log. Revocation is
// a new record with Granted=false, never a mutation: the full history is
// the audit trail.
type ConsentRecord struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"user_id"`
	ConsentType ConsentType `json:"consent_type"`
	Granted     bool        `json:"granted"`
	Timestamp   time.Time   `json:"timestamp"`
	IPAddress   string      `json:"ip_address,omitempty"`
	UserAgent   string      `json:"user_agent,omitempty"`
	Purpose     string      `json:"purpose"`
	LegalBasis  string      `json:"legal_basis"`
}

// ProcessingLogEntry records one act of personal-data processing.
type ProcessingLogEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Purpose    string    `json:"purpose"`
	LegalBasis string    `json:"legal_basis"`
	Fields     []string  `json:"fields"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConsentRepository persists the consent and processing logs. Appends only;
// nothing updates or deletes a consent record.
type ConsentRepository interface {
	AppendConsent(ctx context.Context, rec ConsentRecord) error
	ListConsent(ctx context.Context, userID string) ([]ConsentRecord, error)
	AppendProcessing(ctx context.Context, entry ProcessingLogEntry) error
	ListProcessing(ctx context.Context, userID string) ([]ProcessingLogEntry, error)
}

// UserDataStore holds the personal-data record subject to erasure and
// portability. The backing store is external; this is the minimal surface
// the ledger needs.
type UserDataStore interface {
	Get(ctx context.Context, userID string) (map[string]string, time.Time, error)
	Put(ctx context.Context, userID string, data map[string]string) error
}

// ErasureRequest carries what the ledger needs to decide an Article 17
// request. LegalHold is determined externally.
type ErasureRequest struct {
	UserID    string
	LegalHold bool
}

// DataExport is the portability bundle returned to the user.
type DataExport struct {
	UserID         string               `json:"user_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	PersonalData   map[string]string    `json:"personal_data,omitempty"`
	ConsentHistory []ConsentRecord      `json:"consent_history"`
	ProcessingLog  []ProcessingLogEntry `json:"processing_log"`
}
