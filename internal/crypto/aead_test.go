package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genvault/genvault/internal/models"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey()
	plaintext := []byte(`{"entries":[{"id":"a"}]}`)

	blob, err := Seal(plaintext, key)
	require.NoError(t, err)
	assert.Len(t, blob, NonceSize+len(plaintext)+TagSize)

	got, err := Open(blob, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealFreshNoncePerCall(t *testing.T) {
	key := testKey()
	plaintext := []byte("same input")

	blob1, err := Seal(plaintext, key)
	require.NoError(t, err)
	blob2, err := Seal(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, blob1[:NonceSize], blob2[:NonceSize])
	assert.NotEqual(t, blob1, blob2)
}

func TestOpenRejectsAnyBitFlip(t *testing.T) {
	key := testKey()

	blob, err := Seal([]byte("sensitive payload"), key)
	require.NoError(t, err)

	// Flip one byte in each region: nonce, ciphertext, tag.
	for _, pos := range []int{0, NonceSize, NonceSize + 3, len(blob) - 1} {
		tampered := make([]byte, len(blob))
		copy(tampered, blob)
		tampered[pos] ^= 0x01

		got, err := Open(tampered, key)
		assert.ErrorIs(t, err, models.ErrAuthenticationFailed, "flip at %d", pos)
		assert.Nil(t, got)
	}
}

func TestOpenWrongKey(t *testing.T) {
	blob, err := Seal([]byte("payload"), testKey())
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xff

	_, err = Open(blob, other)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestOpenTruncatedBlob(t *testing.T) {
	_, err := Open(make([]byte, NonceSize+TagSize-1), testKey())
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSealRejectsBadKeySize(t *testing.T) {
	_, err := Seal([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
