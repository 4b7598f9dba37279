package cipher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devzbysiu/dox-sub000/internal/cipher"
)

func TestCipher_DecryptOfEncryptReturnsOriginal(t *testing.T) {
	c := cipher.New()

	plaintext := []byte("some document bytes")
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestCipher_DecryptRejectsTamperedCiphertext(t *testing.T) {
	c := cipher.New()

	ciphertext, err := c.Encrypt([]byte("hello"))
	require.NoError(t, err)
	ciphertext[0] ^= 0xFF

	_, err = c.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestCipher_EmptyPlaintextRoundTrips(t *testing.T) {
	c := cipher.New()

	ciphertext, err := c.Encrypt(nil)
	require.NoError(t, err)

	got, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Empty(t, got)
}
