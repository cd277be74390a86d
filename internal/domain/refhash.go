package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RefHash is the 32-byte content hash binding an off-chain intent to the
// invoice it eventually funds. It is the deduplication key on both sides.
type RefHash [32]byte

// ReferenceHash derives the reference hash for an intent. The encoding is
// canonical: the same inputs always produce the same hash, and the intent
// id salts the digest so two intents with identical terms stay distinct.
func ReferenceHash(intentID, smbAddress string, faceAmount uint64, dueDate time.Time, pool PoolKind) RefHash {
	payload := fmt.Sprintf("%s|%s|%d|%d|%d", intentID, smbAddress, faceAmount, dueDate.Unix(), int32(pool))
	return sha256.Sum256([]byte(payload))
}

func (h RefHash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseRefHash decodes a 64-character hex string into a RefHash.
func ParseRefHash(s string) (RefHash, error) {
	var h RefHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid reference hash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid reference hash length: %d", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// IsZero reports whether the hash is unset.
func (h RefHash) IsZero() bool {
	return h == RefHash{}
}

// MarshalJSON encodes the hash as a hex string.
func (h RefHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the hash.
func (h *RefHash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("reference hash must be a JSON string")
	}
	parsed, err := ParseRefHash(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
