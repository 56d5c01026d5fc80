package emergency

import (
	"context"
	"sync"
	"time"
)

// GrantRepository persists emergency access grants. Create must be atomic per
// (user, patient) pair: two concurrent creates for the same pair with no
// active grant must yield exactly one stored grant, with the loser receiving
// the winner's grant.
type GrantRepository interface {
	// Create stores the grant unless an active grant already exists for the
	// pair, in which case the existing grant is returned with created=false.
	Create(ctx context.Context, grant Grant) (stored Grant, created bool, err error)

	// Get returns the grant by ID, or ErrGrantNotFound.
	Get(ctx context.Context, id string) (Grant, error)

	// GetByPair returns the most recent grant for the pair regardless of
	// expiry, or ErrGrantNotFound.
	GetByPair(ctx context.Context, userID, patientID string) (Grant, error)

	// Save upserts the grant by ID without the pair-uniqueness check. Used
	// for review updates and for rolling back a failed operation.
	Save(ctx context.Context, grant Grant) error

	// Delete removes the grant. Deleting an absent grant is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all retained grants in no particular order.
	List(ctx context.Context) ([]Grant, error)
}

// MemoryGrantRepository is an in-process GrantRepository. A single mutex
// covers the check-then-insert in Create so the pair-uniqueness invariant
// holds under concurrency; reads take the shared lock.
type MemoryGrantRepository struct {
	mu     sync.RWMutex
	grants map[string]Grant
	now    func() time.Time
}

// NewMemoryGrantRepository creates an empty in-memory repository.
func NewMemoryGrantRepository() *MemoryGrantRepository {
	return &MemoryGrantRepository{
		grants: make(map[string]Grant),
		now:    time.Now,
	}
}

// WithClock overrides the repository time source, for tests.
func (r *MemoryGrantRepository) WithClock(now func() time.Time) *MemoryGrantRepository {
	r.now = now
	return r
}

// Create implements GrantRepository.
func (r *MemoryGrantRepository) Create(ctx context.Context, grant Grant) (Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, g := range r.grants {
		if g.UserID == grant.UserID && g.PatientID == grant.PatientID && g.Active(now) {
			return g, false, nil
		}
	}

	r.grants[grant.ID] = grant
	return grant, true, nil
}

// Get implements GrantRepository.
func (r *MemoryGrantRepository) Get(ctx context.Context, id string) (Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grant, ok := r.grants[id]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	return grant, nil
}

// GetByPair implements GrantRepository.
func (r *MemoryGrantRepository) GetByPair(ctx context.Context, userID, patientID string) (Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest Grant
		found  bool
	)
	for _, g := range r.grants {
		if g.UserID != userID || g.PatientID != patientID {
			continue
		}
		if !found || g.GrantedAt.After(latest.GrantedAt) {
			latest = g
			found = true
		}
	}
	if !found {
		return Grant{}, ErrGrantNotFound
	}
	return latest, nil
}

// Save implements GrantRepository.
func (r *MemoryGrantRepository) Save(ctx context.Context, grant Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.grants[grant.ID] = grant
	return nil
}

// Delete implements GrantRepository.
func (r *MemoryGrantRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.grants, id)
	return nil
}

// List implements GrantRepository.
func (r *MemoryGrantRepository) List(ctx context.Context) ([]Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grants := make([]Grant, 0, len(r.grants))
	for _, g := range r.grants {
		grants = append(grants, g)
	}
	return grants, nil
}
