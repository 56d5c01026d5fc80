package mfa_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/audit"
	"github.com/lacson1/bluequeehealthcare-sub017/pkg/mfa"
	"github.com/lacson1/bluequeehealthcare-sub017/pkg/totp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func enableMFA(t *testing.T, svc *mfa.Service, userID string, at time.Time) mfa.SetupResult {
	t.Helper()
	ctx := context.Background()

	setup, err := svc.SetupMFA(ctx, userID, userID+"@clinic.example")
	require.NoError(t, err)

	code, err := totp.GenerateTOTPAt(setup.Secret, at)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyMFASetup(ctx, userID, code))
	return setup
}

func TestSetupMFA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	setup, err := svc.SetupMFA(ctx, "user-1", "dr.house@clinic.example")
	require.NoError(t, err)

	assert.Regexp(t, totp.ValidateSecretKeyRegex, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.URI, "otpauth://totp/"))
	assert.Contains(t, setup.URI, "secret="+setup.Secret)
	assert.NotEmpty(t, setup.QRCodePNG)
	assert.Len(t, setup.BackupCodes, 10)

	state, err := svc.State(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, mfa.StatePendingSetup, state)
}

func TestVerifyMFASetupTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	t.Run("no record", func(t *testing.T) {
		err := svc.VerifyMFASetup(ctx, "nobody", "123456")
		assert.ErrorIs(t, err, mfa.ErrNotSetUp)
	})

	setup, err := svc.SetupMFA(ctx, "user-1", "dr.house@clinic.example")
	require.NoError(t, err)

	t.Run("wrong code stays pending", func(t *testing.T) {
		err := svc.VerifyMFASetup(ctx, "user-1", "000000")
		assert.ErrorIs(t, err, mfa.ErrInvalidCredential)

		state, err := svc.State(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, mfa.StatePendingSetup, state)
	})

	t.Run("valid code enables", func(t *testing.T) {
		code, err := totp.GenerateTOTPAt(setup.Secret, now)
		require.NoError(t, err)
		require.NoError(t, svc.VerifyMFASetup(ctx, "user-1", code))

		state, err := svc.State(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, mfa.StateEnabled, state)
	})

	t.Run("second verification rejected", func(t *testing.T) {
		code, err := totp.GenerateTOTPAt(setup.Secret, now)
		require.NoError(t, err)
		err = svc.VerifyMFASetup(ctx, "user-1", code)
		assert.ErrorIs(t, err, mfa.ErrAlreadyEnabled)
	})

	t.Run("setup while enabled rejected", func(t *testing.T) {
		_, err := svc.SetupMFA(ctx, "user-1", "dr.house@clinic.example")
		assert.ErrorIs(t, err, mfa.ErrAlreadyEnabled)
	})
}

func TestVerifyMFA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	t.Run("user without mfa passes trivially", func(t *testing.T) {
		result, err := svc.VerifyMFA(ctx, "opt-out-user", "anything")
		require.NoError(t, err)
		assert.False(t, result.MFARequired)
	})

	setup := enableMFA(t, svc, "user-1", now)

	t.Run("valid totp code", func(t *testing.T) {
		code, err := totp.GenerateTOTPAt(setup.Secret, now)
		require.NoError(t, err)

		result, err := svc.VerifyMFA(ctx, "user-1", code)
		require.NoError(t, err)
		assert.True(t, result.MFARequired)
		assert.False(t, result.UsedBackupCode)
		assert.Equal(t, 10, result.RemainingBackupCodes)
	})

	t.Run("wrong code fails generically", func(t *testing.T) {
		_, err := svc.VerifyMFA(ctx, "user-1", "000000")
		assert.ErrorIs(t, err, mfa.ErrInvalidCredential)
	})

	t.Run("backup code authenticates once", func(t *testing.T) {
		result, err := svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[0])
		require.NoError(t, err)
		assert.True(t, result.UsedBackupCode)
		assert.Equal(t, 9, result.RemainingBackupCodes)

		// The consumed code must not work a second time.
		_, err = svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[0])
		assert.ErrorIs(t, err, mfa.ErrInvalidCredential)
	})

	t.Run("backup code input is normalized", func(t *testing.T) {
		lowered := strings.ToLower(strings.ReplaceAll(setup.BackupCodes[1], "-", ""))
		result, err := svc.VerifyMFA(ctx, "user-1", lowered)
		require.NoError(t, err)
		assert.True(t, result.UsedBackupCode)
		assert.Equal(t, 8, result.RemainingBackupCodes)
	})
}

func TestVerifyMFAExhaustsBackupCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(),
		mfa.WithClock(fixedClock(now)),
		mfa.WithBackupCodeCount(2),
	)

	setup := enableMFA(t, svc, "user-1", now)

	result, err := svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[0])
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemainingBackupCodes)

	result, err = svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[1])
	require.NoError(t, err)
	assert.Equal(t, 0, result.RemainingBackupCodes, "exhaustion is surfaced, not fatal")

	// TOTP still works with no backup codes left.
	code, err := totp.GenerateTOTPAt(setup.Secret, now)
	require.NoError(t, err)
	result, err = svc.VerifyMFA(ctx, "user-1", code)
	require.NoError(t, err)
	assert.True(t, result.MFARequired)
}

func TestDisableMFA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	enableMFA(t, svc, "user-1", now)

	require.NoError(t, svc.DisableMFA(ctx, "user-1"))

	state, err := svc.State(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, mfa.StateNone, state)

	// Disabled users pass login checks trivially again.
	result, err := svc.VerifyMFA(ctx, "user-1", "anything")
	require.NoError(t, err)
	assert.False(t, result.MFARequired)

	// Disabling an absent record is not an error.
	assert.NoError(t, svc.DisableMFA(ctx, "never-enrolled"))
}

func TestRegenerateBackupCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	t.Run("requires enabled record", func(t *testing.T) {
		_, err := svc.RegenerateBackupCodes(ctx, "nobody")
		assert.ErrorIs(t, err, mfa.ErrNotSetUp)

		_, err = svc.SetupMFA(ctx, "pending-user", "p@clinic.example")
		require.NoError(t, err)
		_, err = svc.RegenerateBackupCodes(ctx, "pending-user")
		assert.ErrorIs(t, err, mfa.ErrNotSetUp)
	})

	t.Run("old codes invalid immediately", func(t *testing.T) {
		setup := enableMFA(t, svc, "user-1", now)

		fresh, err := svc.RegenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, fresh, 10)

		_, err = svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[0])
		assert.ErrorIs(t, err, mfa.ErrInvalidCredential)

		result, err := svc.VerifyMFA(ctx, "user-1", fresh[0])
		require.NoError(t, err)
		assert.True(t, result.UsedBackupCode)
		assert.Equal(t, 9, result.RemainingBackupCodes)
	})
}

func TestMFAAuditTrail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	storage := audit.NewMemoryStorage()
	svc := mfa.NewService(mfa.NewMemoryStore(),
		mfa.WithClock(fixedClock(now)),
		mfa.WithAuditLogger(audit.NewLogger(storage)),
	)

	setup := enableMFA(t, svc, "user-1", now)
	_, err := svc.VerifyMFA(ctx, "user-1", setup.BackupCodes[0])
	require.NoError(t, err)
	require.NoError(t, svc.DisableMFA(ctx, "user-1"))

	events, err := storage.Query(ctx, audit.Criteria{UserID: "user-1"})
	require.NoError(t, err)

	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		"mfa.setup_started",
		"mfa.enabled",
		"mfa.backup_code_used",
		"mfa.disabled",
	}, actions)
}

func TestSetupScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Full enrollment scenario: setup, receive 10 backup codes, enable with a
	// current code, fail a later login with a wrong code, recover with a
	// backup code exactly once.
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := mfa.NewService(mfa.NewMemoryStore(), mfa.WithClock(fixedClock(now)))

	setup, err := svc.SetupMFA(ctx, "user-9", "nurse.chen@clinic.example")
	require.NoError(t, err)
	require.Len(t, setup.BackupCodes, 10)

	code, err := totp.GenerateTOTPAt(setup.Secret, now)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyMFASetup(ctx, "user-9", code))

	_, err = svc.VerifyMFA(ctx, "user-9", "999999")
	assert.ErrorIs(t, err, mfa.ErrInvalidCredential)

	result, err := svc.VerifyMFA(ctx, "user-9", setup.BackupCodes[4])
	require.NoError(t, err)
	assert.True(t, result.UsedBackupCode)
	assert.Equal(t, 9, result.RemainingBackupCodes)

	_, err = svc.VerifyMFA(ctx, "user-9", setup.BackupCodes[4])
	assert.ErrorIs(t, err, mfa.ErrInvalidCredential)
}
