package privacy

import "errors"

var (
	// Key errors
	ErrMasterKeyNotSet     = errors.New("encryption master key not set")
	ErrInvalidMasterKey    = errors.New("invalid master key: must be 32 bytes")
	ErrFailedToGenerateKey = errors.New("failed to generate encryption key")
	ErrKeyDerivationFailed = errors.New("key derivation failed")

	// Encryption/decryption errors
	ErrMissingPurpose   = errors.New("missing encryption purpose")
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed covers tampered ciphertext, a wrong purpose string,
	// and a wrong master key alike. Keeping a single sentinel for all three
	// prevents the error from acting as a padding/tag oracle.
	ErrDecryptionFailed = errors.New("decryption failed: integrity check did not pass")

	// Serialization errors
	ErrSerializationFailed = errors.New("value serialization failed")
)
