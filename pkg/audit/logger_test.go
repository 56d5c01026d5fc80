package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLog(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage)
	ctx := context.Background()

	err := logger.Log(ctx, "emergency.access_granted",
		audit.WithGrant("grant-1"),
		audit.WithActor("user-7"),
		audit.WithPatient("patient-42"),
		audit.WithResource("patient_record", "patient-42"),
		audit.WithMetadata("reason", "unconscious_patient"),
	)
	require.NoError(t, err)

	events, err := storage.Query(ctx, audit.Criteria{GrantID: "grant-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "emergency.access_granted", e.Action)
	assert.Equal(t, audit.ResultSuccess, e.Result)
	assert.Equal(t, "user-7", e.UserID)
	assert.Equal(t, "patient-42", e.PatientID)
	assert.Equal(t, "patient_record", e.Resource)
	assert.Equal(t, "unconscious_patient", e.Metadata["reason"])
	assert.WithinDuration(t, time.Now(), e.CreatedAt, time.Second)
	assert.True(t, audit.Verify(e, nil), "stored event checksum must verify")
}

func TestLoggerLogError(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage)
	ctx := context.Background()

	cause := errors.New("justification too short")
	err := logger.LogError(ctx, "emergency.request_rejected", cause,
		audit.WithActor("user-3"),
	)
	require.NoError(t, err)

	events, err := storage.Query(ctx, audit.Criteria{UserID: "user-3"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResultError, events[0].Result)
	assert.Equal(t, "justification too short", events[0].Error)
}

func TestLoggerPropagatesStorageFailure(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	sinkErr := errors.New("sink unavailable")
	storage.FailWith(func(audit.Event) error { return sinkErr })

	logger := audit.NewLogger(storage)

	err := logger.Log(context.Background(), "emergency.access_granted")
	assert.ErrorIs(t, err, sinkErr, "audit failures must never be swallowed")
}

func TestLoggerRejectsEmptyAction(t *testing.T) {
	t.Parallel()

	logger := audit.NewLogger(audit.NewMemoryStorage())

	err := logger.Log(context.Background(), "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)
}

func TestTamperedEventFailsVerification(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage)
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, "mfa.enabled", audit.WithActor("user-1")))

	events, err := storage.Query(ctx, audit.Criteria{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	tampered := events[0]
	tampered.UserID = "user-999"
	assert.False(t, audit.Verify(tampered, nil))
}
