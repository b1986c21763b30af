package fingerprint

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Fingerprint identifies a clipboard entry by its content. Klipper offers no
// stable cross-poll identifier, so equal content is treated as the same entry
// (hash collisions are accepted as identity).
type Fingerprint [32]byte

// Of returns the fingerprint of content.
func Of(content string) Fingerprint {
	return blake3.Sum256([]byte(content))
}

func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// Short is a log-friendly prefix of the fingerprint.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}
