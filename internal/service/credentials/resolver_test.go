package credentials_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/credentials"
)

func TestResolve_FreeQuotaAcceptsAllOnPlatformKeys(t *testing.T) {
	t.Parallel()
	res := credentials.Resolve(
		[]string{domain.ModelChatGPT, domain.ModelGemini},
		true,
		map[string]string{domain.ModelChatGPT: "pk-openai", domain.ModelGemini: "pk-gemini"},
		map[string]string{domain.ModelChatGPT: "user-key-ignored"},
	)
	require.Len(t, res.Accepted, 2)
	assert.True(t, res.FreeTier)
	assert.Empty(t, res.Missing)
	for _, a := range res.Accepted {
		assert.Equal(t, domain.KeySourcePlatform, a.Source)
	}
	assert.Equal(t, "pk-openai", res.Accepted[0].Key)
	assert.Equal(t, "pk-gemini", res.Accepted[1].Key)
}

func TestResolve_ExhaustedQuotaUsesUserKeysAndCollectsMissing(t *testing.T) {
	t.Parallel()
	res := credentials.Resolve(
		[]string{domain.ModelChatGPT, domain.ModelGemini},
		false,
		map[string]string{domain.ModelChatGPT: "pk-openai", domain.ModelGemini: "pk-gemini"},
		map[string]string{domain.ModelGemini: "uk-gemini"},
	)
	require.Len(t, res.Accepted, 1)
	assert.False(t, res.FreeTier)
	assert.Equal(t, domain.ModelGemini, res.Accepted[0].Model)
	assert.Equal(t, "uk-gemini", res.Accepted[0].Key)
	assert.Equal(t, domain.KeySourceUser, res.Accepted[0].Source)
	assert.Equal(t, []string{domain.ModelChatGPT}, res.Missing)
}

func TestResolve_EmptyUserKeyCountsAsMissing(t *testing.T) {
	t.Parallel()
	res := credentials.Resolve(
		[]string{domain.ModelClaude},
		false,
		nil,
		map[string]string{domain.ModelClaude: ""},
	)
	assert.Empty(t, res.Accepted)
	assert.Equal(t, []string{domain.ModelClaude}, res.Missing)
}

func TestResolve_NoKeysAtAll(t *testing.T) {
	t.Parallel()
	res := credentials.Resolve(domain.KnownModels, false, nil, nil)
	assert.Empty(t, res.Accepted)
	assert.Len(t, res.Missing, 4)
}
