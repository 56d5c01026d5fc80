package mfa

import (
	"context"
	"sync"
)

// Store persists per-user MFA records. Implementations must make Save
// atomic per record: a partially replaced backup-code set is never visible.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Save(ctx context.Context, record Record) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns the record for userID, or ErrRecordNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// Save stores the record, replacing any existing one for the same user.
func (s *MemoryStore) Save(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.UserID] = cloneRecord(record)
	return nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

func cloneRecord(r Record) Record {
	hashes := make([]string, len(r.BackupCodeHashes))
	copy(hashes, r.BackupCodeHashes)
	r.BackupCodeHashes = hashes
	return r
}
