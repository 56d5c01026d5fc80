// Package privacy provides authenticated encryption for protected health
// information at rest: field values, JSON objects, and file payloads.
//
// A single process-wide master key (supplied by a KeyProvider, typically from
// the ENCRYPTION_MASTER_KEY environment variable) is never used directly for
// encryption. Every call derives a purpose-scoped subkey with
// HKDF-SHA256(masterKey, freshSalt, purpose), so ciphertexts produced for
// "patient:allergies" are opaque under the key derived for
// "patient:medications" even if one derived key leaks. The purpose string is
// part of the decryption contract: decrypting with a different purpose fails
// exactly like tampering does.
//
// Encryption is AES-256-GCM with a 16-byte random nonce and 16-byte tag per
// call. Salt and nonce are drawn from crypto/rand on every encryption and are
// never reused or counter-derived; the stored EncryptedValue carries
// ciphertext, IV, tag, and salt as separate fields, so no key material is
// ever persisted.
//
// All decryption failures — tampered bytes, wrong purpose, wrong key — are
// reported as the single sentinel ErrDecryptionFailed to avoid oracle leaks.
//
// EncryptRecordFields/DecryptRecordFields bulk-encrypt a configurable
// allow-list of sensitive field names in a flat record, wrapping each value
// in a tagged EncryptedField so downstream code can tell ciphertext from
// plaintext without a schema. HashForIndex produces a deterministic HMAC
// token for exact-match search over encrypted fields; it deliberately trades
// frequency confidentiality for searchability and must not be used for
// anything else.
package privacy
