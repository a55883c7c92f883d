// Package ai contains the provider adapters the fan-out dispatches to. Each
// adapter implements domain.Provider for exactly one backend; credentials are
// passed per call so user keys and platform keys share one code path.
package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/brandlens/brandlens/internal/adapter/observability"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// Registry maps model identifiers to their provider adapters.
type Registry struct {
	providers map[string]domain.Provider
}

// NewRegistry wires one adapter per known model from config.
func NewRegistry(cfg config.Config) *Registry {
	return &Registry{providers: map[string]domain.Provider{
		domain.ModelChatGPT:    NewOpenAIProvider(cfg),
		domain.ModelClaude:     NewAnthropicProvider(cfg),
		domain.ModelGemini:     NewGeminiProvider(cfg),
		domain.ModelPerplexity: NewPerplexityProvider(cfg),
	}}
}

// Provider resolves the adapter for a model identifier.
func (r *Registry) Provider(model string) (domain.Provider, error) {
	p, ok := r.providers[model]
	if !ok {
		return nil, fmt.Errorf("op=ai.Provider model=%s: %w", model, domain.ErrInvalidArgument)
	}
	return p, nil
}

// finishCompletion applies the shared post-call policy: record metrics, map
// blank output to ErrProviderEmpty.
func finishCompletion(provider, text string, start time.Time, err error) (string, error) {
	if err != nil {
		observability.ObserveAIRequest(provider, "error", time.Since(start))
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		observability.ObserveAIRequest(provider, "empty", time.Since(start))
		return "", fmt.Errorf("op=ai.%s.Query: %w", provider, domain.ErrProviderEmpty)
	}
	observability.ObserveAIRequest(provider, "success", time.Since(start))
	return text, nil
}

// classifyStatus maps an HTTP status from a provider to the domain taxonomy.
func classifyStatus(provider string, status int) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("op=ai.%s.Query status=%d: %w", provider, status, domain.ErrProviderAuth)
	}
	return fmt.Errorf("op=ai.%s.Query status=%d: %w", provider, status, domain.ErrProvider)
}
