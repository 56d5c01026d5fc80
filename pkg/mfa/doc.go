// Package mfa orchestrates per-user multi-factor authentication state over
// the totp package: setup, setup verification, login-time checks, disabling,
// and backup-code regeneration.
//
// The lifecycle is none → pending_setup → enabled, with disable returning to
// none from anywhere. Pending and enabled are distinct State values rather
// than flags, so the two can never be true at once. A secret transitions to
// enabled only after the user proves possession with a valid code; a failed
// proof leaves the record pending.
//
// Login verification tries the TOTP code first and falls back to the
// single-use backup codes. A matched backup code is removed from the stored
// hash set and persisted before success is reported; if persistence fails the
// attempt fails and the code remains valid for a retry. Verification failures
// are reported as the generic ErrInvalidCredential without revealing which
// factor failed.
//
// Persistence is behind the small Store interface; MemoryStore serves tests
// and single-process deployments.
package mfa
