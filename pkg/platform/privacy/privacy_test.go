package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherDigest(t *testing.T) {
	h := NewHasher("log-key")

	first := h.Digest("+84901234567")
	assert.Len(t, first, digestSize*2)
	assert.Equal(t, first, h.Digest("+84901234567"), "digest must be stable")
	assert.NotEqual(t, first, h.Digest("+84901234568"))
	assert.NotEqual(t, first, NewHasher("other-key").Digest("+84901234567"), "digest must depend on key")
	assert.Empty(t, h.Digest(""))

	var nilHasher *Hasher
	assert.Empty(t, nilHasher.Digest("+84901234567"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********567", MaskPhone("+84901234567"))
	assert.Equal(t, "**", MaskPhone("12"))
	assert.Equal(t, "", MaskPhone(""))
}
