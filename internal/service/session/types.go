package session

import (
	"context"
	"time"
)

// Session is an authenticated session. Expiry is absolute from CreatedAt;
// LastActivity is refreshed on every validation but never extends the
// session's life (it exists for display and investigation only).
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CSRFToken    string    `json:"csrf_token"`
}

// Store persists sessions. The redis-backed implementation is required for
// multi-instance deployments; in-memory state would fragment sessions
// across processes.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (Session, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// Identity is what the credential authority knows about a verified user.
type Identity struct {
	UserID string
	Role   string
}

// CredentialVerifier is the external credential authority. The manager
// treats it as opaque: it only ever learns pass/fail.
type CredentialVerifier interface {
	// Verify checks username/password and returns the identity on success.
	Verify(ctx context.Context, username, password string) (Identity, bool, error)

	// UpdatePassword stores a new password for the user.
	UpdatePassword(ctx context.Context, username, newPassword string) error
}
