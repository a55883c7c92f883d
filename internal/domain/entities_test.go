package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/domain"
)

func TestProviderErrorKinds_MatchProviderSentinel(t *testing.T) {
	t.Parallel()
	assert.True(t, errors.Is(domain.ErrProviderAuth, domain.ErrProvider))
	assert.True(t, errors.Is(domain.ErrProviderEmpty, domain.ErrProvider))
	assert.False(t, errors.Is(domain.ErrProviderAuth, domain.ErrPersistence))
}

func TestCredentialsRequiredError_IsAndMessage(t *testing.T) {
	t.Parallel()
	err := &domain.CredentialsRequiredError{Missing: []string{"chatgpt", "gemini"}}
	require.True(t, errors.Is(err, domain.ErrCredentialsRequired))
	assert.Contains(t, err.Error(), "chatgpt")
	assert.Contains(t, err.Error(), "gemini")

	wrapped := fmt.Errorf("op=fanout: %w", err)
	require.True(t, errors.Is(wrapped, domain.ErrCredentialsRequired))
	var cre *domain.CredentialsRequiredError
	require.True(t, errors.As(wrapped, &cre))
	assert.Equal(t, []string{"chatgpt", "gemini"}, cre.Missing)
}

func TestIsKnownModel(t *testing.T) {
	t.Parallel()
	for _, m := range domain.KnownModels {
		assert.True(t, domain.IsKnownModel(m), m)
	}
	assert.False(t, domain.IsKnownModel("grok"))
	assert.False(t, domain.IsKnownModel(""))
}
