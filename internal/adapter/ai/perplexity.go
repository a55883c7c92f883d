package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// PerplexityProvider answers "perplexity" queries through the
// OpenAI-compatible chat completions endpoint. Transient failures retry with
// exponential backoff; 4xx responses never retry.
type PerplexityProvider struct {
	baseURL   string
	model     string
	maxTokens int
	hc        *http.Client
}

type pplxRequest struct {
	Model     string        `json:"model"`
	Messages  []pplxMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type pplxMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pplxResponse struct {
	Choices []struct {
		Message pplxMessage `json:"message"`
	} `json:"choices"`
}

func NewPerplexityProvider(cfg config.Config) *PerplexityProvider {
	return &PerplexityProvider{
		baseURL:   cfg.PerplexityBaseURL,
		model:     cfg.PerplexityModel,
		maxTokens: cfg.ProviderMaxTokens,
		hc: &http.Client{
			Timeout:   cfg.ProviderTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *PerplexityProvider) Name() string { return domain.ModelPerplexity }

func (p *PerplexityProvider) Query(ctx domain.Context, prompt, apiKey string) (string, error) {
	start := time.Now()

	payload, err := json.Marshal(pplxRequest{
		Model:     p.model,
		Messages:  []pplxMessage{{Role: "user", Content: prompt}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return finishCompletion(p.Name(), "", start, fmt.Errorf("op=ai.perplexity.Query: %w: %v", domain.ErrInternal, err))
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxElapsedTime = 30 * time.Second

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("op=ai.perplexity.Query: %w: %v", domain.ErrInternal, err))
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.hc.Do(req)
		if err != nil {
			return fmt.Errorf("op=ai.perplexity.Query: %w: %v", domain.ErrProvider, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(classifyStatus(p.Name(), resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return classifyStatus(p.Name(), resp.StatusCode)
		}

		var out pplxResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("op=ai.perplexity.Query: %w: %v", domain.ErrProvider, err))
		}
		if len(out.Choices) > 0 {
			text = out.Choices[0].Message.Content
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expo, ctx)); err != nil {
		slog.Debug("perplexity call failed", slog.Any("error", err))
		return finishCompletion(p.Name(), "", start, err)
	}
	return finishCompletion(p.Name(), text, start, nil)
}
