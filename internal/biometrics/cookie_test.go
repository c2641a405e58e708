package biometrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomCookieSourceNeverYieldsZero(t *testing.T) {
	t.Parallel()

	source := NewRandomCookieSource()
	for i := 0; i < 10_000; i++ {
		require.NotZero(t, source.NextCookie())
	}
}
