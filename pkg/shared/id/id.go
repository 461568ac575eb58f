package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a short random correlation id.
func New() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
