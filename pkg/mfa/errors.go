package mfa

import "errors"

var (
	// ErrRecordNotFound is returned by stores when no MFA record exists.
	ErrRecordNotFound = errors.New("mfa record not found")

	// ErrNotSetUp is returned when an operation requires an existing MFA
	// record and none is present (or it is still pending setup where enabled
	// is required).
	ErrNotSetUp = errors.New("mfa is not set up")

	// ErrAlreadyEnabled is returned when setup is attempted on an account
	// that already completed it.
	ErrAlreadyEnabled = errors.New("mfa is already enabled")

	// ErrInvalidCredential is returned for any failed verification. It is
	// deliberately generic: callers must not learn which factor failed.
	ErrInvalidCredential = errors.New("invalid credential")
)
