package privacy

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// KeyProvider supplies the process-wide master key. The key is read once at
// initialization and must never change for the lifetime of the process.
type KeyProvider interface {
	MasterKey() []byte
}

type staticKeyProvider struct {
	key []byte
}

func (p *staticKeyProvider) MasterKey() []byte { return p.key }

// NewStaticKeyProvider wraps raw key material, mainly for tests and for
// callers that manage key loading themselves.
func NewStaticKeyProvider(key []byte) (KeyProvider, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &staticKeyProvider{key: k}, nil
}

// NewEnvKeyProvider loads and decodes the master key from the environment
// (ENCRYPTION_MASTER_KEY, base64-encoded 32 bytes).
func NewEnvKeyProvider() (KeyProvider, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, errors.Join(ErrInvalidMasterKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidMasterKey
	}

	return &staticKeyProvider{key: key}, nil
}

// GenerateMasterKey creates a new random 32-byte key suitable for AES-256.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Join(ErrFailedToGenerateKey, err)
	}
	return key, nil
}

// GenerateEncodedMasterKey returns a fresh key as a base64 string, ready to
// be stored in the ENCRYPTION_MASTER_KEY environment variable.
func GenerateEncodedMasterKey() (string, error) {
	key, err := GenerateMasterKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
