package mfa

import (
	"context"
	"errors"
	"log/slog"
	"time"

	skipqrcode "github.com/skip2/go-qrcode"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/audit"
	"github.com/lacson1/bluequeehealthcare-sub017/pkg/totp"
)

const (
	defaultIssuer          = "BlueQueue Health"
	defaultBackupCodeCount = 10
	defaultQRCodeSize      = 256
)

// Service orchestrates per-user MFA state: setup, verification, login checks,
// disabling, and backup-code regeneration. TOTP code math lives in the totp
// package; this service owns the state transitions and the consumption of
// single-use backup codes.
type Service struct {
	store           Store
	auditLog        *audit.Logger
	log             *slog.Logger
	issuer          string
	backupCodeCount int
	window          int
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAuditLogger enables audit-trail entries for MFA state transitions.
// When set, a failed audit write fails the transition itself.
func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Service) {
		s.auditLog = l
	}
}

// WithBackupCodeCount sets how many backup codes each setup issues.
func WithBackupCodeCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.backupCodeCount = n
		}
	}
}

// WithVerificationWindow sets the TOTP clock-drift window in time steps.
func WithVerificationWindow(window int) Option {
	return func(s *Service) {
		if window >= 0 {
			s.window = window
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an MFA orchestrator over the given store.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("mfa: store cannot be nil")
	}

	s := &Service{
		store:           store,
		log:             slog.Default(),
		issuer:          defaultIssuer,
		backupCodeCount: defaultBackupCodeCount,
		window:          totp.DefaultWindow,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupMFA issues a fresh secret and backup codes for the user and persists
// the record in the pending-setup state. The returned plaintext backup codes
// and QR image are shown once and are not retrievable again; only code hashes
// are stored. A repeated call while still pending reissues everything.
func (s *Service) SetupMFA(ctx context.Context, userID, accountName string) (SetupResult, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return SetupResult{}, err
	}
	if record.State == StateEnabled {
		return SetupResult{}, ErrAlreadyEnabled
	}

	secret, err := totp.GenerateSecretKey(0)
	if err != nil {
		return SetupResult{}, err
	}

	codes, err := totp.GenerateRecoveryCodes(s.backupCodeCount)
	if err != nil {
		return SetupResult{}, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = totp.HashRecoveryCode(code)
	}

	uri, err := totp.GetTOTPURI(totp.TOTPParams{
		Secret:      secret,
		AccountName: accountName,
		Issuer:      s.issuer,
	})
	if err != nil {
		return SetupResult{}, err
	}

	qrPNG, err := skipqrcode.Encode(uri, skipqrcode.Medium, defaultQRCodeSize)
	if err != nil {
		return SetupResult{}, err
	}

	if err := s.store.Save(ctx, Record{
		UserID:           userID,
		State:            StatePendingSetup,
		Secret:           secret,
		BackupCodeHashes: hashes,
		UpdatedAt:        s.now(),
	}); err != nil {
		return SetupResult{}, err
	}

	if err := s.auditTransition(ctx, "mfa.setup_started", userID); err != nil {
		return SetupResult{}, err
	}

	s.log.InfoContext(ctx, "mfa setup started", slog.String("user_id", userID))

	return SetupResult{
		Secret:      secret,
		URI:         uri,
		QRCodePNG:   qrPNG,
		BackupCodes: codes,
	}, nil
}

// VerifyMFASetup proves possession of the secret and transitions the record
// from pending setup to enabled. On a wrong code the record stays pending and
// ErrInvalidCredential is returned.
func (s *Service) VerifyMFASetup(ctx context.Context, userID, code string) error {
	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return ErrNotSetUp
	}
	if err != nil {
		return err
	}

	switch record.State {
	case StateEnabled:
		return ErrAlreadyEnabled
	case StatePendingSetup:
		// proceed
	default:
		return ErrNotSetUp
	}

	ok, err := totp.ValidateTOTPAt(record.Secret, code, s.window, s.now())
	if err != nil || !ok {
		s.log.WarnContext(ctx, "mfa setup verification failed", slog.String("user_id", userID))
		return ErrInvalidCredential
	}

	record.State = StateEnabled
	record.UpdatedAt = s.now()
	if err := s.store.Save(ctx, record); err != nil {
		return err
	}

	if err := s.auditTransition(ctx, "mfa.enabled", userID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "mfa enabled", slog.String("user_id", userID))
	return nil
}

// VerifyMFA performs the login-time check. Users without an enabled record
// pass trivially (MFA is opt-in, and a pending setup does not enforce yet).
// For enabled users the TOTP code is tried first, then the backup codes; a
// matched backup code is consumed — persisted as removed — before success is
// reported. Failure is the generic ErrInvalidCredential regardless of which
// factor failed.
func (s *Service) VerifyMFA(ctx context.Context, userID, code string) (VerifyResult, error) {
	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return VerifyResult{MFARequired: false}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	if record.State != StateEnabled {
		return VerifyResult{MFARequired: false}, nil
	}

	result := VerifyResult{
		MFARequired:          true,
		RemainingBackupCodes: len(record.BackupCodeHashes),
	}

	ok, err := totp.ValidateTOTPAt(record.Secret, code, s.window, s.now())
	if err == nil && ok {
		s.log.InfoContext(ctx, "mfa verified", slog.String("user_id", userID))
		return result, nil
	}

	idx, matched := totp.MatchRecoveryCode(code, record.BackupCodeHashes)
	if !matched {
		s.log.WarnContext(ctx, "mfa verification failed", slog.String("user_id", userID))
		return VerifyResult{}, ErrInvalidCredential
	}

	// Consume the code: persist the reduced set before reporting success so
	// the same code can never authenticate twice. If the save fails, the
	// attempt fails and the code stays valid for a retry.
	record.BackupCodeHashes = append(
		record.BackupCodeHashes[:idx],
		record.BackupCodeHashes[idx+1:]...,
	)
	record.UpdatedAt = s.now()
	if err := s.store.Save(ctx, record); err != nil {
		return VerifyResult{}, err
	}

	if err := s.auditTransition(ctx, "mfa.backup_code_used", userID); err != nil {
		return VerifyResult{}, err
	}

	result.UsedBackupCode = true
	result.RemainingBackupCodes = len(record.BackupCodeHashes)

	s.log.InfoContext(ctx, "mfa verified with backup code",
		slog.String("user_id", userID),
		slog.Int("remaining_backup_codes", result.RemainingBackupCodes),
	)
	return result, nil
}

// DisableMFA clears all MFA state for the user unconditionally.
func (s *Service) DisableMFA(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}

	if err := s.auditTransition(ctx, "mfa.disabled", userID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "mfa disabled", slog.String("user_id", userID))
	return nil
}

// RegenerateBackupCodes replaces the stored hash set atomically. The old
// codes are invalid the moment the new record is saved. Requires an enabled
// record.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrNotSetUp
	}
	if err != nil {
		return nil, err
	}
	if record.State != StateEnabled {
		return nil, ErrNotSetUp
	}

	codes, err := totp.GenerateRecoveryCodes(s.backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = totp.HashRecoveryCode(code)
	}

	record.BackupCodeHashes = hashes
	record.UpdatedAt = s.now()
	if err := s.store.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := s.auditTransition(ctx, "mfa.backup_codes_regenerated", userID); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "mfa backup codes regenerated", slog.String("user_id", userID))
	return codes, nil
}

// State reports the user's current MFA state.
func (s *Service) State(ctx context.Context, userID string) (State, error) {
	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return StateNone, nil
	}
	if err != nil {
		return StateNone, err
	}
	return record.State, nil
}

func (s *Service) auditTransition(ctx context.Context, action, userID string) error {
	if s.auditLog == nil {
		return nil
	}
	return s.auditLog.Log(ctx, action, audit.WithActor(userID))
}
