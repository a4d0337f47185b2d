package seal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNew(t *testing.T) {
	t.Run("short key rejected", func(t *testing.T) {
		_, err := New([]byte("too-short"))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("32-byte key accepted", func(t *testing.T) {
		sealer, err := New(testKey())
		require.NoError(t, err)
		assert.NotNil(t, sealer)
	})
}

func TestSealOpen(t *testing.T) {
	sealer, err := New(testKey())
	require.NoError(t, err)

	t.Run("round trip recovers plaintext", func(t *testing.T) {
		plaintext := []byte(`{"summary":"id_located"}`)
		sealed, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	})

	t.Run("sealing the same payload twice yields distinct ciphertexts", func(t *testing.T) {
		plaintext := []byte("payload")
		first, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		second, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		sealed, err := sealer.Seal([]byte("payload"))
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xFF

		_, err = sealer.Open(sealed)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		sealed, err := sealer.Seal([]byte("payload"))
		require.NoError(t, err)

		other, err := New(bytes.Repeat([]byte{0x99}, 32))
		require.NoError(t, err)
		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated payload rejected", func(t *testing.T) {
		_, err := sealer.Open([]byte{0x01, 0x02})
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}
