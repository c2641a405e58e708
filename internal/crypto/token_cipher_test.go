package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	token := []byte("hardware-auth-token")
	sealed, err := cipher.Seal(token, []byte("record-id"))
	require.NoError(t, err)
	require.NotEqual(t, token, sealed)

	opened, err := cipher.Unseal(sealed, []byte("record-id"))
	require.NoError(t, err)
	require.Equal(t, token, opened)
}

func TestUnsealRejectsWrongAAD(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	sealed, err := cipher.Seal([]byte("token"), []byte("record-a"))
	require.NoError(t, err)

	_, err = cipher.Unseal(sealed, []byte("record-b"))
	require.ErrorIs(t, err, ErrUnsealFailed)
}

func TestUnsealRejectsTamperedBlob(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	sealed, err := cipher.Seal([]byte("token"), nil)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = cipher.Unseal(sealed, nil)
	require.ErrorIs(t, err, ErrUnsealFailed)
}

func TestUnsealRejectsShortBlob(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	_, err = cipher.Unseal([]byte("short"), nil)
	require.ErrorIs(t, err, ErrInvalidCipherInput)
}

func TestDifferentRootKeysCannotUnseal(t *testing.T) {
	t.Parallel()

	first, err := NewTokenCipher([]byte("root-a"), []byte("salt"))
	require.NoError(t, err)
	defer first.Destroy()
	second, err := NewTokenCipher([]byte("root-b"), []byte("salt"))
	require.NoError(t, err)
	defer second.Destroy()

	sealed, err := first.Seal([]byte("token"), nil)
	require.NoError(t, err)

	_, err = second.Unseal(sealed, nil)
	require.ErrorIs(t, err, ErrUnsealFailed)
}

func TestSealProducesUniqueNonces(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	first, err := cipher.Seal([]byte("token"), nil)
	require.NoError(t, err)
	second, err := cipher.Seal([]byte("token"), nil)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestConstructorRejectsEmptyRootKey(t *testing.T) {
	t.Parallel()

	_, err := NewTokenCipher(nil, []byte("salt"))
	require.ErrorIs(t, err, ErrInvalidCipherInput)
}

func TestSealRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	cipher, err := NewTokenCipher([]byte("root-key"), []byte("salt"))
	require.NoError(t, err)
	defer cipher.Destroy()

	_, err = cipher.Seal(nil, nil)
	require.ErrorIs(t, err, ErrInvalidCipherInput)
}
