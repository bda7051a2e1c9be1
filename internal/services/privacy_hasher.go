package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PlatformSentinel identifies the platform itself as a counterparty. It is
// stored as-is so it can be matched literally.
const PlatformSentinel = "PLATFORM"

// PrivacyHasher turns participant identifiers into one-way hashes
type PrivacyHasher struct {
	pepper []byte
}

// NewPrivacyHasher creates a hasher. With an empty pepper the hash is plain
// SHA-256; otherwise HMAC-SHA256 keyed by the pepper.
func NewPrivacyHasher(pepper string) *PrivacyHasher {
	return &PrivacyHasher{pepper: []byte(pepper)}
}

// Hash returns the lowercase hex hash of identity
func (h *PrivacyHasher) Hash(identity string) string {
	if identity == PlatformSentinel {
		return identity
	}
	if len(h.pepper) == 0 {
		sum := sha256.Sum256([]byte(identity))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}
