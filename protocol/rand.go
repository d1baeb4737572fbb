package protocol

import (
	crand "crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"time"
)

// RandomShortAddress returns a random 2-byte short address. If crypto/rand
// fails (rare on host), falls back to math/rand.
func RandomShortAddress() uint16 {
	var b [2]byte
	if _, err := crand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint16(b[:])
	}
	src := mrand.NewSource(time.Now().UnixNano())
	return uint16(mrand.New(src).Uint32())
}
