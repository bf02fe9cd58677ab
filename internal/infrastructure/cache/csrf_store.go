package cache

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const csrfTokenBytes = 32

// csrfStore implements CSRFStore on top of any Store. One token per
// session: Generate always overwrites, so older tabs holding a stale token
// fail validation after a refresh elsewhere.
type csrfStore struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCSRFStore creates a CSRF token store. Tokens expire with ttl, which
// should match the session duration.
func NewCSRFStore(store Store, ttl time.Duration, logger *zap.Logger) CSRFStore {
	return &csrfStore{store: store, ttl: ttl, logger: logger}
}

func (c *csrfStore) Generate(ctx context.Context, sessionID string) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(b)

	if err := c.store.Set(ctx, CSRFPrefix+sessionID, token, c.ttl); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}

	c.logger.Debug("csrf token issued", zap.String("session_id", sessionID))
	return token, nil
}

func (c *csrfStore) Validate(ctx context.Context, sessionID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	stored, err := c.store.Get(ctx, CSRFPrefix+sessionID)
	if err != nil {
		var notFound ErrKeyNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("load csrf token: %w", err)
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

func (c *csrfStore) Revoke(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, CSRFPrefix+sessionID)
}
