package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// AnthropicProvider answers "claude" queries through the Messages API.
type AnthropicProvider struct {
	baseURL   string
	model     string
	maxTokens int
	hc        *http.Client
}

func NewAnthropicProvider(cfg config.Config) *AnthropicProvider {
	return &AnthropicProvider{
		baseURL:   cfg.AnthropicBaseURL,
		model:     cfg.AnthropicModel,
		maxTokens: cfg.ProviderMaxTokens,
		hc: &http.Client{
			Timeout:   cfg.ProviderTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *AnthropicProvider) Name() string { return domain.ModelClaude }

func (p *AnthropicProvider) Query(ctx domain.Context, prompt, apiKey string) (string, error) {
	start := time.Now()

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(p.hc),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return finishCompletion(p.Name(), "", start, classifyStatus(p.Name(), apierr.StatusCode))
		}
		slog.Debug("anthropic call failed", slog.Any("error", err))
		return finishCompletion(p.Name(), "", start, fmt.Errorf("op=ai.claude.Query: %w: %v", domain.ErrProvider, err))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return finishCompletion(p.Name(), sb.String(), start, nil)
}
