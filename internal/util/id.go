package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier, optionally namespaced with a prefix
// such as "mtg" or "note".
func NewID(prefix string) string {
	bytes := make([]byte, 12)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
