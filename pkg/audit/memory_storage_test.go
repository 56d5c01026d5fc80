package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(t *testing.T, storage *audit.MemoryStorage) {
	t.Helper()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{ID: "e3", GrantID: "g1", UserID: "u1", Action: "emergency.access_used", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "e1", GrantID: "g1", UserID: "u1", Action: "emergency.access_granted", CreatedAt: base},
		{ID: "e2", GrantID: "g2", UserID: "u2", Action: "emergency.access_granted", CreatedAt: base.Add(time.Hour)},
		{ID: "e4", GrantID: "g1", UserID: "u1", Action: "emergency.access_reviewed", CreatedAt: base.Add(3 * time.Hour)},
	}
	require.NoError(t, storage.Store(context.Background(), events...))
}

func TestMemoryStorageQueryFilters(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	seedEvents(t, storage)
	ctx := context.Background()

	t.Run("by grant ordered oldest first", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{GrantID: "g1"})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "e1", events[0].ID)
		assert.Equal(t, "e3", events[1].ID)
		assert.Equal(t, "e4", events[2].ID)
	})

	t.Run("by action", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{Action: "emergency.access_granted"})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by time range", func(t *testing.T) {
		t.Parallel()
		from := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
		to := time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC)
		events, err := storage.Query(ctx, audit.Criteria{From: from, To: to})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e2", events[0].ID)
		assert.Equal(t, "e3", events[1].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{GrantID: "g1", Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "e3", events[0].ID)
	})

	t.Run("offset past end", func(t *testing.T) {
		t.Parallel()
		events, err := storage.Query(ctx, audit.Criteria{Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestMemoryStorageCount(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	seedEvents(t, storage)

	n, err := storage.Count(context.Background(), audit.Criteria{GrantID: "g1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestReaderUsesStorageCounter(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	seedEvents(t, storage)
	reader := audit.NewReader(storage)

	n, err := reader.Count(context.Background(), audit.Criteria{UserID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	events, err := reader.Find(context.Background(), audit.Criteria{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}
