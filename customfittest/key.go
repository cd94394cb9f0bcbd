package customfittest

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomClientKey returns an opaque test client key, long enough to look
// plausible without needing a live account.
func RandomClientKey() string {
	buf := make([]byte, 11)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
