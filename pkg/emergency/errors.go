package emergency

import "errors"

var (
	// Request validation errors. These are surfaced with their specific
	// reason so the clinician can correct the request; they are not
	// security oracles.
	ErrUserNotFound          = errors.New("user not found")
	ErrPatientNotFound       = errors.New("patient not found")
	ErrRoleNotAuthorized     = errors.New("role not authorized for emergency access")
	ErrInvalidReason         = errors.New("invalid emergency access reason")
	ErrJustificationTooShort = errors.New("justification must be at least 20 characters")

	// Grant lifecycle errors
	ErrGrantNotFound   = errors.New("emergency access grant not found")
	ErrGrantExpired    = errors.New("emergency access grant has expired")
	ErrInvalidToken    = errors.New("access token does not match")
	ErrAlreadyReviewed = errors.New("grant has already been reviewed")

	// ErrRepositoryUnavailable indicates the grant store failed.
	ErrRepositoryUnavailable = errors.New("grant repository unavailable")
)
