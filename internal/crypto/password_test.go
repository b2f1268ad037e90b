package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordVerifies(t *testing.T) {
	encoded, err := HashPassword("hunter2", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, VerifyPassword(encoded, "hunter2"))
	assert.False(t, VerifyPassword(encoded, "hunter3"))
	assert.False(t, VerifyPassword(encoded, ""))
}

func TestHashPasswordDistinctSaltPerCall(t *testing.T) {
	h1, err := HashPassword("same", fastParams)
	require.NoError(t, err)
	h2, err := HashPassword("same", fastParams)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword(h1, "same"))
	assert.True(t, VerifyPassword(h2, "same"))
}

func TestVerifyPasswordNormalizes(t *testing.T) {
	// The ligature form and the decomposed form must verify against each
	// other after NFKC normalization.
	encoded, err := HashPassword("ofﬁce", fastParams)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(encoded, "office"))
}

func TestVerifyLegacyPBKDF2(t *testing.T) {
	salt := []byte("0123456789abcdef")
	encoded := LegacyPBKDF2Hash("old password", salt, 1000)

	assert.True(t, strings.HasPrefix(encoded, "$pbkdf2-sha256$i=1000$"))
	assert.True(t, VerifyPassword(encoded, "old password"))
	assert.False(t, VerifyPassword(encoded, "wrong"))
}

func TestVerifyPasswordUnknownFormats(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$bcrypt$whatever",
		"$argon2id$",
		"$argon2id$v=19$m=8192,t=1,p=1$notbase64!!$digest",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGlnZXN0",
		"$pbkdf2-sha256$i=0$c2FsdA$ZGlnZXN0",
		"$pbkdf2-sha256$i=abc$c2FsdA$ZGlnZXN0",
	}
	for _, encoded := range cases {
		assert.False(t, VerifyPassword(encoded, "password"), "encoded=%q", encoded)
	}
}
