package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := newTestSealer(t)

	for _, plaintext := range []string{"", "want to smoke some greens", "тест 😀"} {
		sealed, err := s.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSealProducesDistinctCiphertexts(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.Seal("same content")
	require.NoError(t, err)
	b, err := s.Seal("same content")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	sealed, err := newTestSealer(t).Seal("secret")
	require.NoError(t, err)

	_, err = newTestSealer(t).Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsMalformedInput(t *testing.T) {
	s := newTestSealer(t)

	_, err := s.Open("not base64!!!")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	_, err = s.Open(short)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSealerRejectsBadKeySize(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNewSealerFromEnv(t *testing.T) {
	const envVar = "TEST_CONTENT_KEY"

	t.Run("unset", func(t *testing.T) {
		t.Setenv(envVar, "")
		_, err := NewSealerFromEnv(envVar)
		assert.ErrorIs(t, err, ErrKeyNotSet)
	})

	t.Run("not base64", func(t *testing.T) {
		t.Setenv(envVar, "%%%")
		_, err := NewSealerFromEnv(envVar)
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	})

	t.Run("valid", func(t *testing.T) {
		key, err := GenerateKey()
		require.NoError(t, err)
		t.Setenv(envVar, base64.StdEncoding.EncodeToString(key))

		s, err := NewSealerFromEnv(envVar)
		require.NoError(t, err)

		sealed, err := s.Seal("hello")
		require.NoError(t, err)
		opened, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "hello", opened)
	})
}
