package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	grantKeyPrefix = "emergency:grant:"
	pairKeyPrefix  = "emergency:pair:"
)

// RedisGrantRepository backs grants with Redis. The pair-uniqueness invariant
// rides on a transactional check of a pair index key (WATCH + MULTI), so two
// concurrent Create calls for the same pair resolve to a single grant across
// processes. Keys carry the retention TTL as a backstop; the service's
// cleanup pass remains the authoritative purge.
type RedisGrantRepository struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewRedisGrantRepository creates a repository over the given client.
// retention bounds how long grant keys live; pass the unreviewed retention
// window, the longest a grant may be kept.
func NewRedisGrantRepository(client redis.UniversalClient, retention time.Duration) *RedisGrantRepository {
	if client == nil {
		panic("emergency: redis client cannot be nil")
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &RedisGrantRepository{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

func grantKey(id string) string {
	return grantKeyPrefix + id
}

func pairKey(userID, patientID string) string {
	return fmt.Sprintf("%s%s:%s", pairKeyPrefix, userID, patientID)
}

// Create implements GrantRepository.
func (r *RedisGrantRepository) Create(ctx context.Context, grant Grant) (Grant, bool, error) {
	pk := pairKey(grant.UserID, grant.PatientID)

	var (
		stored  Grant
		created bool
	)

	txn := func(tx *redis.Tx) error {
		existingID, err := tx.Get(ctx, pk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if err == nil {
			existing, getErr := r.getWithClient(ctx, tx, existingID)
			switch {
			case getErr == nil && existing.Active(r.now()):
				stored = existing
				created = false
				return nil
			case getErr != nil && !errors.Is(getErr, ErrGrantNotFound):
				return getErr
			}
			// Stale pair index (expired or purged grant): fall through and
			// overwrite it inside the transaction.
		}

		data, err := json.Marshal(grant)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, grantKey(grant.ID), data, r.retention)
			pipe.Set(ctx, pk, grant.ID, r.retention)
			return nil
		})
		if err != nil {
			return err
		}
		stored = grant
		created = true
		return nil
	}

	// Retry on WATCH conflicts; a concurrent winner makes the next attempt
	// observe its grant and return it idempotently.
	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txn, pk)
		if err == nil {
			return stored, created, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return Grant{}, false, errors.Join(ErrRepositoryUnavailable, err)
		}
	}
	return Grant{}, false, ErrRepositoryUnavailable
}

// Get implements GrantRepository.
func (r *RedisGrantRepository) Get(ctx context.Context, id string) (Grant, error) {
	return r.getWithClient(ctx, r.client, id)
}

func (r *RedisGrantRepository) getWithClient(ctx context.Context, c redis.Cmdable, id string) (Grant, error) {
	data, err := c.Get(ctx, grantKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Grant{}, ErrGrantNotFound
	}
	if err != nil {
		return Grant{}, errors.Join(ErrRepositoryUnavailable, err)
	}

	var grant Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return Grant{}, errors.Join(ErrRepositoryUnavailable, err)
	}
	return grant, nil
}

// GetByPair implements GrantRepository.
func (r *RedisGrantRepository) GetByPair(ctx context.Context, userID, patientID string) (Grant, error) {
	id, err := r.client.Get(ctx, pairKey(userID, patientID)).Result()
	if errors.Is(err, redis.Nil) {
		return Grant{}, ErrGrantNotFound
	}
	if err != nil {
		return Grant{}, errors.Join(ErrRepositoryUnavailable, err)
	}
	return r.Get(ctx, id)
}

// Save implements GrantRepository.
func (r *RedisGrantRepository) Save(ctx context.Context, grant Grant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return errors.Join(ErrRepositoryUnavailable, err)
	}
	if err := r.client.Set(ctx, grantKey(grant.ID), data, r.retention).Err(); err != nil {
		return errors.Join(ErrRepositoryUnavailable, err)
	}
	return nil
}

// Delete implements GrantRepository.
func (r *RedisGrantRepository) Delete(ctx context.Context, id string) error {
	grant, err := r.Get(ctx, id)
	if errors.Is(err, ErrGrantNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Remove the pair index only when it still points at this grant; a newer
	// grant for the same pair may have claimed it.
	pk := pairKey(grant.UserID, grant.PatientID)
	if pairVal, perr := r.client.Get(ctx, pk).Result(); perr == nil && pairVal == id {
		if err := r.client.Del(ctx, pk).Err(); err != nil {
			return errors.Join(ErrRepositoryUnavailable, err)
		}
	}
	if err := r.client.Del(ctx, grantKey(id)).Err(); err != nil {
		return errors.Join(ErrRepositoryUnavailable, err)
	}
	return nil
}

// List implements GrantRepository.
func (r *RedisGrantRepository) List(ctx context.Context) ([]Grant, error) {
	var grants []Grant

	iter := r.client.Scan(ctx, 0, grantKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // purged between scan and read
		}
		if err != nil {
			return nil, errors.Join(ErrRepositoryUnavailable, err)
		}
		var grant Grant
		if err := json.Unmarshal(data, &grant); err != nil {
			return nil, errors.Join(ErrRepositoryUnavailable, err)
		}
		grants = append(grants, grant)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Join(ErrRepositoryUnavailable, err)
	}
	return grants, nil
}
