package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifySecret(t *testing.T) {
	t.Parallel()
	encoded, err := HashSecret("s3cret-value")
	require.NoError(t, err)
	assert.True(t, VerifySecret("s3cret-value", encoded))
	assert.False(t, VerifySecret("wrong", encoded))
}

func TestVerifySecret_MalformedHash(t *testing.T) {
	t.Parallel()
	assert.False(t, VerifySecret("x", "not-a-hash"))
	assert.False(t, VerifySecret("x", "argon2id$a$b$c$d$e"))
	assert.False(t, VerifySecret("x", "bcrypt$3$65536$2$abc$def"))
}

func TestSplitToken(t *testing.T) {
	t.Parallel()
	id, secret, ok := SplitToken("tok_123.abcdef")
	require.True(t, ok)
	assert.Equal(t, "tok_123", id)
	assert.Equal(t, "abcdef", secret)

	_, _, ok = SplitToken("no-separator")
	assert.False(t, ok)
	_, _, ok = SplitToken(".secret-only")
	assert.False(t, ok)
	_, _, ok = SplitToken("id-only.")
	assert.False(t, ok)
}
