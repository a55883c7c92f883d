package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// OpenAIProvider answers "chatgpt" queries through the OpenAI chat
// completions API. The SDK client is rebuilt per call because the key differs
// between user and platform credentials.
type OpenAIProvider struct {
	baseURL   string
	model     string
	maxTokens int
	hc        *http.Client
}

func NewOpenAIProvider(cfg config.Config) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:   cfg.OpenAIBaseURL,
		model:     cfg.OpenAIModel,
		maxTokens: cfg.ProviderMaxTokens,
		hc: &http.Client{
			Timeout:   cfg.ProviderTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *OpenAIProvider) Name() string { return domain.ModelChatGPT }

func (p *OpenAIProvider) Query(ctx domain.Context, prompt, apiKey string) (string, error) {
	start := time.Now()

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(p.hc),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(int64(p.maxTokens)),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return finishCompletion(p.Name(), "", start, classifyStatus(p.Name(), apierr.StatusCode))
		}
		slog.Debug("openai call failed", slog.Any("error", err))
		return finishCompletion(p.Name(), "", start, fmt.Errorf("op=ai.chatgpt.Query: %w: %v", domain.ErrProvider, err))
	}
	if len(resp.Choices) == 0 {
		return finishCompletion(p.Name(), "", start, nil)
	}
	return finishCompletion(p.Name(), resp.Choices[0].Message.Content, start, nil)
}
