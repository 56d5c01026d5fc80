package audit

import "context"

type reader struct {
	storage Storage
}

// Reader provides query access to historical audit data.
type Reader interface {
	Find(ctx context.Context, criteria Criteria) ([]Event, error)
	Count(ctx context.Context, criteria Criteria) (int64, error)
}

// NewReader creates a new audit reader
func NewReader(storage Storage) Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &reader{storage: storage}
}

// Find retrieves audit events based on the criteria
func (r *reader) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	return r.storage.Query(ctx, criteria)
}

// Count returns the count of audit events matching the criteria.
// Storage implementations with an optimized COUNT should implement
// StorageCounter; otherwise matching records are loaded and counted.
func (r *reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if counter, ok := r.storage.(StorageCounter); ok {
		return counter.Count(ctx, criteria)
	}

	events, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

// StorageCounter is an optional Storage extension for optimized counting.
type StorageCounter interface {
	Count(ctx context.Context, criteria Criteria) (int64, error)
}
