package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher("test-signing-secret")
	require.NoError(t, err)

	for _, plaintext := range []string{
		"ya29.a0AfH6SMBexample-access-token",
		"1//0gexample-refresh-token",
		"",
		"short",
	} {
		armored, err := c.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := c.Decrypt(armored)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestTokenCipherNonceVaries(t *testing.T) {
	c, err := NewTokenCipher("test-signing-secret")
	require.NoError(t, err)

	first, err := c.Encrypt("same input")
	require.NoError(t, err)
	second, err := c.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenCipherKeyMismatch(t *testing.T) {
	a, err := NewTokenCipher("secret-a")
	require.NoError(t, err)
	b, err := NewTokenCipher("secret-b")
	require.NoError(t, err)

	armored, err := a.Encrypt("token")
	require.NoError(t, err)

	_, err = b.Decrypt(armored)
	assert.Error(t, err)
}

func TestTokenCipherRejectsTruncated(t *testing.T) {
	c, err := NewTokenCipher("test-signing-secret")
	require.NoError(t, err)

	_, err = c.Decrypt("AAAA")
	assert.Error(t, err)

	_, err = c.Decrypt("not base64 !!!")
	assert.Error(t, err)
}

func TestTokenCipherEmptySecret(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.Error(t, err)
}
