package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
)

// cacheStore stores sessions as JSON in a cache.Store. The TTL runs a little
// past the absolute session duration so the manager, not the cache, decides
// expiry and gets to audit it.
type cacheStore struct {
	store cache.Store
	ttl   time.Duration
}

// NewStore builds a session Store on top of a cache backend.
func NewStore(store cache.Store, sessionDuration time.Duration) Store {
	return &cacheStore{store: store, ttl: sessionDuration + time.Hour}
}

func (s *cacheStore) Save(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.store.Set(ctx, cache.SessionPrefix+sess.SessionID, string(raw), s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *cacheStore) Get(ctx context.Context, sessionID string) (Session, bool, error) {
	raw, err := s.store.Get(ctx, cache.SessionPrefix+sessionID)
	if err != nil {
		var notFound cache.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, true, nil
}

func (s *cacheStore) Delete(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, cache.SessionPrefix+sessionID)
}
