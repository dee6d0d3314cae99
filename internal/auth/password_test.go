package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, h.Verify(hash, "correct horse battery staple"))
	assert.False(t, h.Verify(hash, "wrong password"))
	assert.False(t, h.Verify(hash, ""))
}

func TestPasswordHasher_HashesDiffer(t *testing.T) {
	h := testHasher()

	h1, err := h.Hash("secret")
	require.NoError(t, err)
	h2, err := h.Hash("secret")
	require.NoError(t, err)

	// bcrypt embeds a random salt
	assert.NotEqual(t, h1, h2)
	assert.True(t, h.Verify(h1, "secret"))
	assert.True(t, h.Verify(h2, "secret"))
}

func TestPasswordHasher_VerifyGarbageHash(t *testing.T) {
	h := testHasher()
	assert.False(t, h.Verify("not-a-bcrypt-hash", "secret"))
}
