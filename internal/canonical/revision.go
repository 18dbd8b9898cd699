package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for document revisions. The version suffix allows the
// document shape to change without colliding with older revisions.
const (
	DomainGoal       = "questcore/goal/v1"
	DomainUserBadges = "questcore/user-badges/v1"
)

// Revision hashes canonical bytes with domain separation:
// SHA256(domain || 0x00 || data), hex encoded.
func Revision(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Encode marshals v canonically and returns the bytes with their revision.
func Encode(domain string, v any) ([]byte, string, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", domain, err)
	}
	return data, Revision(domain, data), nil
}
