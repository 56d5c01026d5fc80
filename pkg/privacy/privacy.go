package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the master and derived key size (AES-256).
	KeySize = 32
	// NonceSize is the per-encryption IV size in bytes.
	NonceSize = 16
	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16
	// SaltSize is the per-encryption key-derivation salt size in bytes.
	SaltSize = 32

	// purposePrefix namespaces HKDF info strings so index-hash keys can never
	// collide with encryption keys derived for the same purpose.
	purposePrefix      = "phi:"
	indexPurposePrefix = "phi-index:"
)

// EncryptedValue is the stored form of an encrypted field. Salt and IV are
// fresh per encryption; the value is opaque without the master key and the
// exact purpose string used at encryption time.
type EncryptedValue struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
	Salt       []byte `json:"salt"`
}

// FileMetadata carries the non-ciphertext parts of an encrypted file so large
// payloads can be stored as raw bytes instead of base64-inflated JSON.
type FileMetadata struct {
	IV      []byte `json:"iv"`
	AuthTag []byte `json:"auth_tag"`
	Salt    []byte `json:"salt"`
	Size    int    `json:"size"`
}

// EncryptedField tags an encrypted record field so downstream code can
// distinguish ciphertext from plaintext without a schema lookup.
type EncryptedField struct {
	Encrypted bool           `json:"__encrypted"`
	Value     EncryptedValue `json:"value"`
}

// Encryptor performs authenticated encryption of field values and file
// payloads under purpose-scoped keys derived from a single master key.
type Encryptor struct {
	keys            KeyProvider
	sensitiveFields map[string]bool
}

// Option configures an Encryptor.
type Option func(*Encryptor)

// WithSensitiveFields replaces the default allow-list of record field names
// encrypted by EncryptRecordFields.
func WithSensitiveFields(fields ...string) Option {
	return func(e *Encryptor) {
		e.sensitiveFields = make(map[string]bool, len(fields))
		for _, f := range fields {
			e.sensitiveFields[strings.ToLower(f)] = true
		}
	}
}

// defaultSensitiveFields is the clinical PHI allow-list applied when no
// custom list is configured.
var defaultSensitiveFields = []string{
	"ssn",
	"date_of_birth",
	"diagnosis",
	"allergies",
	"medications",
	"lab_results",
	"clinical_notes",
	"insurance_id",
}

// New creates an Encryptor backed by the given key provider.
func New(keys KeyProvider, opts ...Option) (*Encryptor, error) {
	if keys == nil {
		return nil, ErrMasterKeyNotSet
	}
	if len(keys.MasterKey()) != KeySize {
		return nil, ErrInvalidMasterKey
	}

	e := &Encryptor{keys: keys}
	WithSensitiveFields(defaultSensitiveFields...)(e)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Encrypt encrypts a string value under a purpose-scoped key. A fresh salt
// and IV are drawn from crypto/rand on every call; reusing either would be a
// correctness violation, so they are never cached or counter-derived.
func (e *Encryptor) Encrypt(plaintext, purpose string) (EncryptedValue, error) {
	return e.EncryptBytes([]byte(plaintext), purpose)
}

// Decrypt reverses Encrypt. It fails with ErrDecryptionFailed whether the
// ciphertext was tampered with, the purpose differs from encryption time, or
// the master key is wrong — callers cannot distinguish the cases.
func (e *Encryptor) Decrypt(value EncryptedValue, purpose string) (string, error) {
	plaintext, err := e.DecryptBytes(value, purpose)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptBytes is the core authenticated-encryption primitive: AES-256-GCM
// under an HKDF-derived subkey bound to the purpose string.
func (e *Encryptor) EncryptBytes(plaintext []byte, purpose string) (EncryptedValue, error) {
	if purpose == "" {
		return EncryptedValue{}, ErrMissingPurpose
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return EncryptedValue{}, errors.Join(ErrEncryptionFailed, err)
	}

	key, err := e.deriveKey(salt, purposePrefix+purpose)
	if err != nil {
		return EncryptedValue{}, err
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return EncryptedValue{}, errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedValue{}, errors.Join(ErrEncryptionFailed, err)
	}

	// Seal appends the tag; split it out so the stored layout keeps
	// ciphertext, IV, tag, and salt as separate fields.
	sealed := aesGCM.Seal(nil, nonce, plaintext, nil)

	return EncryptedValue{
		Ciphertext: sealed[:len(sealed)-TagSize],
		IV:         nonce,
		AuthTag:    sealed[len(sealed)-TagSize:],
		Salt:       salt,
	}, nil
}

// DecryptBytes reverses EncryptBytes.
func (e *Encryptor) DecryptBytes(value EncryptedValue, purpose string) ([]byte, error) {
	if purpose == "" {
		return nil, ErrMissingPurpose
	}
	// Structural problems surface as the same sentinel as tag mismatches so
	// the error is not an oracle for what went wrong.
	if len(value.IV) != NonceSize || len(value.AuthTag) != TagSize || len(value.Salt) != SaltSize {
		return nil, ErrDecryptionFailed
	}

	key, err := e.deriveKey(value.Salt, purposePrefix+purpose)
	if err != nil {
		return nil, err
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(value.Ciphertext)+TagSize)
	sealed = append(sealed, value.Ciphertext...)
	sealed = append(sealed, value.AuthTag...)

	plaintext, err := aesGCM.Open(nil, value.IV, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptObject JSON-serializes the value and encrypts the result.
func (e *Encryptor) EncryptObject(v any, purpose string) (EncryptedValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return EncryptedValue{}, errors.Join(ErrSerializationFailed, err)
	}
	return e.EncryptBytes(data, purpose)
}

// DecryptObject decrypts and JSON-deserializes into out.
func (e *Encryptor) DecryptObject(value EncryptedValue, purpose string, out any) error {
	data, err := e.DecryptBytes(value, purpose)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(ErrSerializationFailed, err)
	}
	return nil
}

// EncryptFile encrypts a file payload, returning the raw ciphertext and its
// metadata separately.
func (e *Encryptor) EncryptFile(data []byte, purpose string) ([]byte, FileMetadata, error) {
	value, err := e.EncryptBytes(data, purpose)
	if err != nil {
		return nil, FileMetadata{}, err
	}
	meta := FileMetadata{
		IV:      value.IV,
		AuthTag: value.AuthTag,
		Salt:    value.Salt,
		Size:    len(data),
	}
	return value.Ciphertext, meta, nil
}

// DecryptFile reverses EncryptFile.
func (e *Encryptor) DecryptFile(ciphertext []byte, meta FileMetadata, purpose string) ([]byte, error) {
	return e.DecryptBytes(EncryptedValue{
		Ciphertext: ciphertext,
		IV:         meta.IV,
		AuthTag:    meta.AuthTag,
		Salt:       meta.Salt,
	}, purpose)
}

// EncryptRecordFields walks a flat record and encrypts the string values of
// allow-listed sensitive field names, wrapping each in a tagged
// EncryptedField. Non-listed fields and non-string values pass through
// untouched. The input map is not modified.
func (e *Encryptor) EncryptRecordFields(record map[string]any, purpose string) (map[string]any, error) {
	out := make(map[string]any, len(record))
	for name, v := range record {
		s, isString := v.(string)
		if !isString || !e.sensitiveFields[strings.ToLower(name)] {
			out[name] = v
			continue
		}
		value, err := e.Encrypt(s, purpose)
		if err != nil {
			return nil, err
		}
		out[name] = EncryptedField{Encrypted: true, Value: value}
	}
	return out, nil
}

// DecryptRecordFields reverses EncryptRecordFields. Fields carrying the
// encrypted tag (either as EncryptedField values or as their JSON map form
// after a storage round trip) are decrypted; everything else passes through.
func (e *Encryptor) DecryptRecordFields(record map[string]any, purpose string) (map[string]any, error) {
	out := make(map[string]any, len(record))
	for name, v := range record {
		value, ok := asEncryptedField(v)
		if !ok {
			out[name] = v
			continue
		}
		plaintext, err := e.Decrypt(value, purpose)
		if err != nil {
			return nil, err
		}
		out[name] = plaintext
	}
	return out, nil
}

// HashForIndex produces a deterministic HMAC token for exact-match search
// over encrypted fields. Determinism leaks equality and frequency, so this
// must only be used for fields that need lookups, never as a substitute for
// Encrypt.
func (e *Encryptor) HashForIndex(value, purpose string) (string, error) {
	if purpose == "" {
		return "", ErrMissingPurpose
	}

	// Fixed (nil) HKDF salt keeps the index key stable across calls; the
	// distinct info prefix separates it from every encryption key.
	key, err := e.deriveKey(nil, indexPurposePrefix+purpose)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// deriveKey derives a 32-byte purpose-scoped subkey from the master key.
// Compromise of one derived key exposes nothing encrypted under another
// purpose, and purposes can be versioned without touching the master key.
func (e *Encryptor) deriveKey(salt []byte, info string) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, e.keys.MasterKey(), salt, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// asEncryptedField recognizes both the typed wrapper and its JSON map form.
func asEncryptedField(v any) (EncryptedValue, bool) {
	switch f := v.(type) {
	case EncryptedField:
		if f.Encrypted {
			return f.Value, true
		}
	case map[string]any:
		tagged, ok := f["__encrypted"].(bool)
		if !ok || !tagged {
			return EncryptedValue{}, false
		}
		data, err := json.Marshal(f["value"])
		if err != nil {
			return EncryptedValue{}, false
		}
		var value EncryptedValue
		if err := json.Unmarshal(data, &value); err != nil {
			return EncryptedValue{}, false
		}
		return value, true
	}
	return EncryptedValue{}, false
}
