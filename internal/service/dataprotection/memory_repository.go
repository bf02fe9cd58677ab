package dataprotection

import (
	"context"
	"sync"
	"time"
)

// memoryRepository keeps the consent and processing logs in process memory.
// Used in tests and single-node deployments without Postgres.
type memoryRepository struct {
	mu         sync.RWMutex
	consent    map[string][]ConsentRecord
	processing map[string][]ProcessingLogEntry
}

// NewMemoryRepository returns an in-memory ConsentRepository.
func NewMemoryRepository() ConsentRepository {
	return &memoryRepository{
		consent:    make(map[string][]ConsentRecord),
		processing: make(map[string][]ProcessingLogEntry),
	}
}

func (r *memoryRepository) AppendConsent(_ context.Context, rec ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consent[rec.UserID] = append(r.consent[rec.UserID], rec)
	return nil
}

func (r *memoryRepository) ListConsent(_ context.Context, userID string) ([]ConsentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.consent[userID]
	out := make([]ConsentRecord, len(records))
	copy(out, records)
	return out, nil
}

func (r *memoryRepository) AppendProcessing(_ context.Context, entry ProcessingLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processing[entry.UserID] = append(r.processing[entry.UserID], entry)
	return nil
}

func (r *memoryRepository) ListProcessing(_ context.Context, userID string) ([]ProcessingLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.processing[userID]
	out := make([]ProcessingLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// memoryUserDataStore is the in-memory UserDataStore counterpart.
type memoryUserDataStore struct {
	mu      sync.RWMutex
	data    map[string]map[string]string
	created map[string]time.Time
}

// NewMemoryUserDataStore returns an in-memory UserDataStore.
func NewMemoryUserDataStore() UserDataStore {
	return &memoryUserDataStore{
		data:    make(map[string]map[string]string),
		created: make(map[string]time.Time),
	}
}

func (s *memoryUserDataStore) Get(_ context.Context, userID string) (map[string]string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.data[userID]
	if !ok {
		return nil, time.Time{}, nil
	}
	out := make(map[string]string, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out, s.created[userID], nil
}

func (s *memoryUserDataStore) Put(_ context.Context, userID string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.created[userID]; !ok {
		s.created[userID] = time.Now()
	}
	stored := make(map[string]string, len(data))
	for k, v := range data {
		stored[k] = v
	}
	s.data[userID] = stored
	return nil
}
