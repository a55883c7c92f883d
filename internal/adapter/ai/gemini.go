package ai

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// GeminiProvider answers "gemini" queries through the generateContent REST
// endpoint. Google's API authenticates with a key query parameter rather than
// a bearer header.
type GeminiProvider struct {
	model     string
	maxTokens int
	client    *resty.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiProvider(cfg config.Config) *GeminiProvider {
	client := resty.New().
		SetBaseURL(cfg.GeminiBaseURL).
		SetTimeout(cfg.ProviderTimeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Content-Type", "application/json")
	return &GeminiProvider{
		model:     cfg.GeminiModel,
		maxTokens: cfg.ProviderMaxTokens,
		client:    client,
	}
}

func (p *GeminiProvider) Name() string { return domain.ModelGemini }

func (p *GeminiProvider) Query(ctx domain.Context, prompt, apiKey string) (string, error) {
	start := time.Now()

	var out geminiResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", apiKey).
		SetBody(geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			Config:   geminiGenConfig{MaxOutputTokens: p.maxTokens},
		}).
		SetResult(&out).
		Post("/models/" + p.model + ":generateContent")
	if err != nil {
		slog.Debug("gemini call failed", slog.Any("error", err))
		return finishCompletion(p.Name(), "", start, fmt.Errorf("op=ai.gemini.Query: %w: %v", domain.ErrProvider, err))
	}
	if resp.IsError() {
		return finishCompletion(p.Name(), "", start, classifyStatus(p.Name(), resp.StatusCode()))
	}

	var sb strings.Builder
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return finishCompletion(p.Name(), sb.String(), start, nil)
}
