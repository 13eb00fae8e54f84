package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HashService_SHA256Hex(t *testing.T) {
	h := HashService{}
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.SHA256Hex(""))
	assert.Equal(t, h.SHA256Hex("abc"), h.SHA256Hex("abc"))
	assert.NotEqual(t, h.SHA256Hex("abc"), h.SHA256Hex("abd"))
}

func Test_HashService_HashPassword_and_VerifyPassword(t *testing.T) {
	h := HashService{}

	encoded, err := h.HashPassword("s3cret-pin")
	require.NoError(t, err)
	require.NotContains(t, encoded, "s3cret-pin")

	ok, err := h.VerifyPassword("s3cret-pin", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyPassword("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("salting makes hashes unique", func(t *testing.T) {
		other, err := h.HashPassword("s3cret-pin")
		require.NoError(t, err)
		assert.NotEqual(t, encoded, other)
	})

	t.Run("malformed hash is an error", func(t *testing.T) {
		_, err := h.VerifyPassword("anything", "not-an-encoded-hash")
		require.Error(t, err)
	})
}
