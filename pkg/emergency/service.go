package emergency

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lacson1/bluequeehealthcare-sub017/pkg/audit"
)

const minJustificationLength = 20

// defaultEligibleRoles is the fixed allow-list of clinical/admin roles that
// may request break-the-glass access.
var defaultEligibleRoles = []string{
	"doctor",
	"nurse",
	"admin",
	"emergency_physician",
}

// Service manages the lifecycle of emergency access grants: request, verify,
// revoke, review, compliance reporting, and retention cleanup. Every state
// transition writes an audit entry before the operation reports success; a
// failed audit write rolls the transition back.
type Service struct {
	repo     GrantRepository
	users    UserDirectory
	patients PatientDirectory
	auditLog *audit.Logger
	log      *slog.Logger
	notify   NotifyFunc

	accessDuration      time.Duration
	reviewSLA           time.Duration
	retentionReviewed   time.Duration
	retentionUnreviewed time.Duration

	eligibleRoles map[string]bool
	now           func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNotifier installs the out-of-band notification hook.
func WithNotifier(notify NotifyFunc) ServiceOption {
	return func(s *Service) {
		s.notify = notify
	}
}

// WithEligibleRoles replaces the role allow-list.
func WithEligibleRoles(roles ...string) ServiceOption {
	return func(s *Service) {
		s.eligibleRoles = make(map[string]bool, len(roles))
		for _, role := range roles {
			s.eligibleRoles[strings.ToLower(role)] = true
		}
	}
}

// WithConfig applies the grant time windows.
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) {
		if cfg.AccessDuration > 0 {
			s.accessDuration = cfg.AccessDuration
		}
		if cfg.ReviewSLA > 0 {
			s.reviewSLA = cfg.ReviewSLA
		}
		if cfg.RetentionReviewed > 0 {
			s.retentionReviewed = cfg.RetentionReviewed
		}
		if cfg.RetentionUnreviewed > 0 {
			s.retentionUnreviewed = cfg.RetentionUnreviewed
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an emergency access manager. The audit logger is a hard
// dependency: grants without an audit trail are worse than no grants.
func NewService(
	repo GrantRepository,
	users UserDirectory,
	patients PatientDirectory,
	auditLog *audit.Logger,
	opts ...ServiceOption,
) *Service {
	if repo == nil {
		panic("emergency: repository cannot be nil")
	}
	if users == nil || patients == nil {
		panic("emergency: directories cannot be nil")
	}
	if auditLog == nil {
		panic("emergency: audit logger cannot be nil")
	}

	s := &Service{
		repo:                repo,
		users:               users,
		patients:            patients,
		auditLog:            auditLog,
		log:                 slog.Default(),
		accessDuration:      time.Hour,
		reviewSLA:           24 * time.Hour,
		retentionReviewed:   7 * 24 * time.Hour,
		retentionUnreviewed: 90 * 24 * time.Hour,
		now:                 time.Now,
	}
	WithEligibleRoles(defaultEligibleRoles...)(s)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccess validates and creates a break-the-glass grant. Requests for a
// pair that already has an active grant return that grant unchanged
// (idempotent by key). Validation failures are audited and surfaced with
// their specific reason so the clinician can correct the request.
func (s *Service) RequestAccess(ctx context.Context, userID, patientID string, reason Reason, justification string) (Grant, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return Grant{}, s.rejectRequest(ctx, userID, patientID, ErrUserNotFound)
	}

	if !s.eligibleRoles[strings.ToLower(user.Role)] {
		return Grant{}, s.rejectRequest(ctx, userID, patientID, ErrRoleNotAuthorized)
	}

	patient, err := s.patients.GetPatientByID(ctx, patientID)
	if err != nil {
		return Grant{}, s.rejectRequest(ctx, userID, patientID, ErrPatientNotFound)
	}

	if !reason.Valid() {
		return Grant{}, s.rejectRequest(ctx, userID, patientID, ErrInvalidReason)
	}

	if len(strings.TrimSpace(justification)) < minJustificationLength {
		return Grant{}, s.rejectRequest(ctx, userID, patientID, ErrJustificationTooShort)
	}

	token, err := generateAccessToken()
	if err != nil {
		return Grant{}, err
	}

	now := s.now()
	grant := Grant{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		PatientID:     patient.ID,
		Reason:        reason,
		Justification: strings.TrimSpace(justification),
		GrantedAt:     now,
		ExpiresAt:     now.Add(s.accessDuration),
		AccessToken:   token,
	}

	stored, created, err := s.repo.Create(ctx, grant)
	if err != nil {
		return Grant{}, err
	}

	if !created {
		s.log.InfoContext(ctx, "returning existing active grant",
			slog.String("grant_id", stored.ID),
			slog.String("user_id", userID),
			slog.String("patient_id", patientID),
		)
		return stored, nil
	}

	// Audit before reporting success. A grant that cannot be audited must
	// not exist: roll it back.
	if err := s.auditLog.Log(ctx, "emergency.access_granted",
		audit.WithGrant(grant.ID),
		audit.WithActor(grant.UserID),
		audit.WithPatient(grant.PatientID),
		audit.WithResource("patient_record", grant.PatientID),
		audit.WithMetadata("reason", string(grant.Reason)),
		audit.WithMetadata("expires_at", grant.ExpiresAt),
	); err != nil {
		if delErr := s.repo.Delete(ctx, grant.ID); delErr != nil {
			s.log.ErrorContext(ctx, "failed to roll back unaudited grant",
				slog.String("grant_id", grant.ID),
				slog.Any("error", delErr),
			)
		}
		return Grant{}, err
	}

	s.log.WarnContext(ctx, "emergency access granted",
		slog.String("grant_id", grant.ID),
		slog.String("user_id", grant.UserID),
		slog.String("patient_id", grant.PatientID),
		slog.String("reason", string(grant.Reason)),
	)

	if s.notify != nil {
		s.notify(ctx, grant)
	}

	return grant, nil
}

// CheckAccess reports why access is or is not currently authorized for the
// pair. A non-empty token must match the grant's token (constant-time).
func (s *Service) CheckAccess(ctx context.Context, userID, patientID, token string) error {
	grant, err := s.repo.GetByPair(ctx, userID, patientID)
	if err != nil {
		return err
	}

	if grant.Expired(s.now()) {
		return ErrGrantExpired
	}

	if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(grant.AccessToken)) != 1 {
		return ErrInvalidToken
	}

	// Record the use. A use that cannot be audited is denied.
	if err := s.auditLog.Log(ctx, "emergency.access_used",
		audit.WithGrant(grant.ID),
		audit.WithActor(userID),
		audit.WithPatient(patientID),
		audit.WithResource("patient_record", patientID),
	); err != nil {
		return err
	}
	return nil
}

// VerifyAccess is the boolean form of CheckAccess used by authorization
// middleware: true only for an active, non-expired grant (and matching token
// when one is supplied).
func (s *Service) VerifyAccess(ctx context.Context, userID, patientID, token string) bool {
	return s.CheckAccess(ctx, userID, patientID, token) == nil
}

// RevokeAccess removes a grant before its natural expiry.
func (s *Service) RevokeAccess(ctx context.Context, grantID, revokedBy, reason string) error {
	grant, err := s.repo.Get(ctx, grantID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, grantID); err != nil {
		return err
	}

	durationUsed := s.now().Sub(grant.GrantedAt)
	if err := s.auditLog.Log(ctx, "emergency.access_revoked",
		audit.WithGrant(grant.ID),
		audit.WithActor(revokedBy),
		audit.WithPatient(grant.PatientID),
		audit.WithMetadata("revocation_reason", reason),
		audit.WithMetadata("duration_used", durationUsed.String()),
	); err != nil {
		// Restore the grant: an unaudited revocation must not stand.
		if saveErr := s.repo.Save(ctx, grant); saveErr != nil {
			s.log.ErrorContext(ctx, "failed to restore grant after audit failure",
				slog.String("grant_id", grant.ID),
				slog.Any("error", saveErr),
			)
		}
		return err
	}

	s.log.InfoContext(ctx, "emergency access revoked",
		slog.String("grant_id", grantID),
		slog.String("revoked_by", revokedBy),
		slog.Duration("duration_used", durationUsed),
	)
	return nil
}

// ReviewAccess records the mandatory after-the-fact review. The grant is
// retained for compliance; review is terminal.
func (s *Service) ReviewAccess(ctx context.Context, grantID, reviewerID string, approved bool, notes string) error {
	grant, err := s.repo.Get(ctx, grantID)
	if err != nil {
		return err
	}
	if grant.Reviewed {
		return ErrAlreadyReviewed
	}

	previous := grant
	grant.Reviewed = true
	grant.ReviewedBy = reviewerID
	grant.ReviewedAt = s.now()
	grant.ReviewApproved = approved
	grant.ReviewNotes = notes

	if err := s.repo.Save(ctx, grant); err != nil {
		return err
	}

	if err := s.auditLog.Log(ctx, "emergency.access_reviewed",
		audit.WithGrant(grant.ID),
		audit.WithActor(reviewerID),
		audit.WithPatient(grant.PatientID),
		audit.WithMetadata("approved", approved),
	); err != nil {
		if saveErr := s.repo.Save(ctx, previous); saveErr != nil {
			s.log.ErrorContext(ctx, "failed to restore grant after audit failure",
				slog.String("grant_id", grant.ID),
				slog.Any("error", saveErr),
			)
		}
		return err
	}

	s.log.InfoContext(ctx, "emergency access reviewed",
		slog.String("grant_id", grantID),
		slog.String("reviewer_id", reviewerID),
		slog.Bool("approved", approved),
	)
	return nil
}

// GetPendingReviews lists unreviewed grants oldest-first, driving the
// compliance queue.
func (s *Service) GetPendingReviews(ctx context.Context) ([]Grant, error) {
	grants, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Grant
	for _, g := range grants {
		if !g.Reviewed {
			pending = append(pending, g)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].GrantedAt.Before(pending[j].GrantedAt)
	})
	return pending, nil
}

// GetComplianceStats summarizes the grant population against the review SLA.
// Overdue unreviewed grants are counted, never silently dropped.
func (s *Service) GetComplianceStats(ctx context.Context) (ComplianceStats, error) {
	grants, err := s.repo.List(ctx)
	if err != nil {
		return ComplianceStats{}, err
	}

	now := s.now()
	stats := ComplianceStats{TotalGrants: len(grants)}
	for _, g := range grants {
		if g.Active(now) {
			stats.ActiveGrants++
		}
		if g.Reviewed {
			stats.ReviewedGrants++
			continue
		}
		stats.PendingReviews++
		if g.Expired(now) {
			stats.ExpiredUnreviewed++
		}
		if now.Sub(g.GrantedAt) > s.reviewSLA {
			stats.OverdueReviews++
		}
	}
	return stats, nil
}

// CleanupExpiredGrants purges grants past their retention window: reviewed
// grants a fixed period after review, unreviewed grants a longer period
// after expiry. Returns the number purged. Intended to be driven by an
// external timer.
func (s *Service) CleanupExpiredGrants(ctx context.Context) (int, error) {
	grants, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	purged := 0
	for _, g := range grants {
		var expired bool
		if g.Reviewed {
			expired = now.Sub(g.ReviewedAt) > s.retentionReviewed
		} else {
			expired = g.Expired(now) && now.Sub(g.ExpiresAt) > s.retentionUnreviewed
		}
		if !expired {
			continue
		}
		if err := s.repo.Delete(ctx, g.ID); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		if err := s.auditLog.Log(ctx, "emergency.grants_purged",
			audit.WithMetadata("count", purged),
		); err != nil {
			return purged, err
		}
		s.log.InfoContext(ctx, "purged expired grants", slog.Int("count", purged))
	}
	return purged, nil
}

// rejectRequest audits a validation failure and returns the original
// rejection reason. Audit failures surface alongside the rejection.
func (s *Service) rejectRequest(ctx context.Context, userID, patientID string, reason error) error {
	s.log.WarnContext(ctx, "emergency access request rejected",
		slog.String("user_id", userID),
		slog.String("patient_id", patientID),
		slog.Any("reason", reason),
	)
	if err := s.auditLog.LogError(ctx, "emergency.request_rejected", reason,
		audit.WithActor(userID),
		audit.WithPatient(patientID),
	); err != nil {
		return errors.Join(reason, err)
	}
	return reason
}

func generateAccessToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}
