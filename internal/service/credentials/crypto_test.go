package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()
	sealed, err := EncryptKey("master-secret", "sk-live-abc123")
	require.NoError(t, err)
	require.NotEmpty(t, sealed)
	assert.NotContains(t, sealed, "sk-live")

	plain, err := DecryptKey("master-secret", sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-abc123", plain)
}

func TestEncryptKey_RandomizedPerCall(t *testing.T) {
	t.Parallel()
	a, err := EncryptKey("master-secret", "same-plaintext")
	require.NoError(t, err)
	b, err := EncryptKey("master-secret", "same-plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptKey_WrongMasterFails(t *testing.T) {
	t.Parallel()
	sealed, err := EncryptKey("master-secret", "sk-live-abc123")
	require.NoError(t, err)
	_, err = DecryptKey("other-secret", sealed)
	require.Error(t, err)
}

func TestDecryptKey_MalformedInput(t *testing.T) {
	t.Parallel()
	_, err := DecryptKey("master-secret", "not base64!!")
	require.Error(t, err)
	_, err = DecryptKey("master-secret", "c2hvcnQ=")
	require.Error(t, err)
}

func TestMasterKeyRequired(t *testing.T) {
	t.Parallel()
	_, err := EncryptKey("", "sk")
	require.Error(t, err)
	_, err = DecryptKey("", "c2hvcnQ=")
	require.Error(t, err)
}
