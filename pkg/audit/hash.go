package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher fingerprints an event for tamper evidence.
type Hasher interface {
	Hash(event Event) string
}

type sha256Hasher struct{}

// NewSHA256Hasher returns the default event fingerprinter.
func NewSHA256Hasher() Hasher {
	return &sha256Hasher{}
}

func (h *sha256Hasher) Hash(event Event) string {
	data := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.ID,
		event.GrantID,
		event.UserID,
		event.PatientID,
		event.Action,
		event.Resource,
		event.ResourceID,
		event.Result,
		event.CreatedAt.Unix(),
		event.Error,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Verify recomputes the checksum of a stored event against the given hasher.
func Verify(event Event, hasher Hasher) bool {
	if hasher == nil {
		hasher = NewSHA256Hasher()
	}
	return event.Checksum == hasher.Hash(event)
}
