package session

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// KeyGenerator produces session keys. Swappable so tests can pin keys.
type KeyGenerator interface {
	NewKey() string
}

// UUIDKeyGenerator issues 64 hex characters from two random UUIDs. The key
// is an opaque bearer token; its only requirements are unguessability and
// cookie safety.
type UUIDKeyGenerator struct{}

// NewKey returns a fresh session key.
func (UUIDKeyGenerator) NewKey() string {
	a, b := uuid.New(), uuid.New()
	raw := make([]byte, 0, 32)
	raw = append(raw, a[:]...)
	raw = append(raw, b[:]...)
	return hex.EncodeToString(raw)
}
