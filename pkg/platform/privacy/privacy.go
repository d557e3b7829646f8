// Package privacy derives log-safe stand-ins for personal data such as caller
// phone numbers.
package privacy

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// digestSize is the truncated digest length in bytes. Correlating log lines
// only needs a short stable token.
const digestSize = 12

// Hasher produces keyed digests so identical values correlate across log
// lines without being reversible by anyone lacking the key.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher. Keys longer than 64 bytes are truncated to the
// BLAKE2b maximum.
func NewHasher(key string) *Hasher {
	k := []byte(key)
	if len(k) > blake2b.Size {
		k = k[:blake2b.Size]
	}
	return &Hasher{key: k}
}

// Digest returns a hex token for value. A nil Hasher returns "".
func (h *Hasher) Digest(value string) string {
	if h == nil || value == "" {
		return ""
	}
	mac, err := blake2b.New(digestSize, h.key)
	if err != nil {
		return ""
	}
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// MaskPhone keeps the last three digits of a phone number for operator
// display, e.g. "+84901234567" -> "*********567".
func MaskPhone(phone string) string {
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
