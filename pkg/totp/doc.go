// Package totp implements RFC 6238 Time-based One-Time Passwords and the
// single-use recovery codes that back them up when the authenticator device
// is unavailable.
//
// The package is deliberately self-contained: secret key creation
// (GenerateSecretKey), HOTP/TOTP code calculation (GenerateHOTP,
// GenerateTOTP, ValidateTOTP) and otpauth:// URI construction (GetTOTPURI)
// are implemented directly against the RFC 4226/6238 constructions rather
// than delegated to a third-party OTP library, keeping the verification
// window and comparison semantics fully under our control.
//
// Validation accepts a symmetric, bounded window of adjacent 30-second time
// steps to tolerate clock drift; every candidate comparison is constant-time.
// Neither generation nor validation mutates any state — recording the
// consumption of a code (or of a recovery code) belongs to the caller, which
// in this codebase is the mfa package.
//
// Recovery codes are generated from crypto/rand, presented as two
// four-character hex groups, and stored only as SHA-256 hashes. User input is
// normalized (case, separators) before hashing so formatting differences
// cannot reject a valid code.
//
// # See Also
//
//   - RFC 4226 – HMAC-Based One-Time Password (HOTP) Algorithm
//   - RFC 6238 – Time-Based One-Time Password (TOTP) Algorithm
package totp
