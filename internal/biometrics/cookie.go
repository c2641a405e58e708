package biometrics

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// CookieSource issues one-shot correlation cookies for the sensor start
// protocol. Implementations must never return zero: zero is the reserved
// "no cookie" sentinel. Injected so tests can pin cookie values.
type CookieSource interface {
	NextCookie() uint32
}

type randomCookieSource struct{}

// NewRandomCookieSource returns the production cookie source backed by
// crypto/rand.
func NewRandomCookieSource() CookieSource {
	return randomCookieSource{}
}

func (randomCookieSource) NextCookie() uint32 {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is unrecoverable for the process.
			panic(fmt.Sprintf("read random cookie: %v", err))
		}
		if cookie := binary.BigEndian.Uint32(buf[:]); cookie != 0 {
			return cookie
		}
	}
}
