// Package idgen generates opaque, collision-resistant identifiers for
// store-managed entities (CrawlSession, Page). None of the example
// dependencies provide an ID generator, so this is stdlib-only:
// crypto/rand bytes, hex-encoded.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a 16-byte random identifier hex-encoded to 32 characters.
func New() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf[:])
}
