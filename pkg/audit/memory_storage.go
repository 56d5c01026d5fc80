package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage is an in-memory, append-only Storage implementation intended
// for tests and single-process deployments.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
	failFn func(Event) error
}

// NewMemoryStorage creates an empty in-memory audit store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// FailWith installs a fault hook invoked before each append. Tests use it to
// simulate an unavailable sink.
func (s *MemoryStorage) FailWith(fn func(Event) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

// Store appends events. The batch is all-or-nothing.
func (s *MemoryStorage) Store(ctx context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFn != nil {
		for _, e := range events {
			if err := s.failFn(e); err != nil {
				return err
			}
		}
	}

	s.events = append(s.events, events...)
	return nil
}

// Query returns matching events ordered oldest-first.
func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for _, e := range s.events {
		if !matches(e, criteria) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if criteria.Offset > 0 {
		if criteria.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(matched) > criteria.Limit {
		matched = matched[:criteria.Limit]
	}

	return matched, nil
}

// Count implements StorageCounter.
func (s *MemoryStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if matches(e, criteria) {
			n++
		}
	}
	return n, nil
}

func matches(e Event, c Criteria) bool {
	if c.GrantID != "" && e.GrantID != c.GrantID {
		return false
	}
	if c.UserID != "" && e.UserID != c.UserID {
		return false
	}
	if c.PatientID != "" && e.PatientID != c.PatientID {
		return false
	}
	if c.Action != "" && e.Action != c.Action {
		return false
	}
	if !c.From.IsZero() && e.CreatedAt.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && e.CreatedAt.After(c.To) {
		return false
	}
	return true
}
