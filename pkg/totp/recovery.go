package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// RecoveryCodeBytes is the raw entropy per code. Four bytes render as
	// eight hex characters, shown to the user as two four-character groups.
	RecoveryCodeBytes = 4

	recoveryCodeSeparator = "-"
)

// GenerateRecoveryCodes creates cryptographically secure backup codes for
// account recovery. Each code is formatted as two 4-character hexadecimal
// groups (e.g. "3FA9-C04B") for legibility.
func GenerateRecoveryCodes(count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidRecoveryCodeCount
	}

	codes := make([]string, count)
	for i := 0; i < count; i++ {
		codeBytes := make([]byte, RecoveryCodeBytes)
		if _, err := rand.Read(codeBytes); err != nil {
			return nil, errors.Join(ErrFailedToGenerateRecoveryCode, err)
		}
		raw := fmt.Sprintf("%X", codeBytes)
		codes[i] = raw[:4] + recoveryCodeSeparator + raw[4:]
	}
	return codes, nil
}

// NormalizeRecoveryCode strips formatting characters and upper-cases the code
// so user input like "3fa9 c04b" hashes identically to the issued "3FA9-C04B".
func NormalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, recoveryCodeSeparator, "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// HashRecoveryCode creates a SHA-256 hash for secure storage of recovery
// codes. The code is normalized first so format drift cannot cause false
// negatives. Codes carry full random entropy and authenticate at most once,
// so no per-code salt is needed.
func HashRecoveryCode(code string) string {
	hash := sha256.Sum256([]byte(NormalizeRecoveryCode(code)))
	return hex.EncodeToString(hash[:])
}

// VerifyRecoveryCode performs constant-time comparison to prevent timing attacks.
func VerifyRecoveryCode(code, hashedCode string) bool {
	computedHash := HashRecoveryCode(code)

	return subtle.ConstantTimeCompare(
		[]byte(computedHash),
		[]byte(hashedCode),
	) == 1
}

// MatchRecoveryCode locates the hash matching the given code within the
// stored set. It returns the index of the matched hash so the caller can
// remove it (one-time use); verification itself mutates nothing.
func MatchRecoveryCode(code string, hashedCodes []string) (int, bool) {
	matched := -1
	for i, h := range hashedCodes {
		// Check every entry so timing does not reveal the match position.
		if VerifyRecoveryCode(code, h) && matched < 0 {
			matched = i
		}
	}
	if matched < 0 {
		return 0, false
	}
	return matched, true
}
