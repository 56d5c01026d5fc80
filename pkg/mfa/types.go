package mfa

import "time"

// State is the MFA lifecycle position of a user record. Pending setup and
// enabled are distinct states rather than boolean flags, so a record can
// never claim both at once.
type State string

const (
	// StateNone means the user has not opted into MFA.
	StateNone State = "none"
	// StatePendingSetup means a secret was issued but not yet proven.
	StatePendingSetup State = "pending_setup"
	// StateEnabled means the user completed setup with a valid code.
	StateEnabled State = "enabled"
)

// Record is the persisted per-user MFA state. Only code hashes are retained;
// plaintext backup codes are shown once at generation and never stored.
type Record struct {
	UserID           string    `json:"user_id"`
	State            State     `json:"state"`
	Secret           string    `json:"secret"`
	BackupCodeHashes []string  `json:"backup_code_hashes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SetupResult is returned once from SetupMFA. The plaintext backup codes and
// the QR image exist only in this value; afterwards only hashes remain.
type SetupResult struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	QRCodePNG   []byte   `json:"qr_code_png"`
	BackupCodes []string `json:"backup_codes"`
}

// VerifyResult reports the outcome of a login-time verification.
type VerifyResult struct {
	// MFARequired is false when the user never enabled MFA and the check
	// passed trivially.
	MFARequired bool `json:"mfa_required"`
	// UsedBackupCode is true when a single-use backup code authenticated the
	// attempt; the code has been consumed by the time the caller sees this.
	UsedBackupCode bool `json:"used_backup_code"`
	// RemainingBackupCodes is the count left after any consumption. Zero is
	// not an error, but callers should prompt the user to regenerate.
	RemainingBackupCodes int `json:"remaining_backup_codes"`
}
