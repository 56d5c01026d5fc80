package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the pluggable persistence backend for audit events. Store must
// be atomic per call: either every event in the batch is recorded or none is.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

// Logger writes audit events. Every Log call returns the storage error to the
// caller — an audit sink must never silently drop entries, and callers treat
// a failed write as a failure of the audited operation itself.
type Logger struct {
	storage Storage
	hasher  Hasher
}

// Option configures Logger behavior during initialization
type Option func(*Logger)

// WithHasher replaces the default SHA-256 event fingerprinter.
func WithHasher(h Hasher) Option {
	return func(l *Logger) {
		if h != nil {
			l.hasher = h
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &Logger{
		storage: storage,
		hasher:  NewSHA256Hasher(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Action:    action,
		Result:    ResultSuccess,
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	event.Checksum = l.hasher.Hash(event)

	return l.storage.Store(ctx, event)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Action:    action,
		Result:    ResultError,
		Error:     err.Error(),
	}

	for _, opt := range opts {
		opt(&event)
	}

	if vErr := event.Validate(); vErr != nil {
		return vErr
	}

	event.Checksum = l.hasher.Hash(event)

	return l.storage.Store(ctx, event)
}
