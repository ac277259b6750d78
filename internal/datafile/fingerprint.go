package datafile

import (
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a stable content hash of a datafile document.
//
// It is used as the cache validator for projected views and as the HTTP ETag.
func Fingerprint(document []byte) string {
	h1, h2 := murmur3.Sum128(document)

	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h1 >> (56 - 8*i))
		buf[8+i] = byte(h2 >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}
