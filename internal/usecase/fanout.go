// Package usecase holds the application services behind the HTTP surface.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/brandlens/brandlens/internal/adapter/observability"
	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/credentials"
	"github.com/brandlens/brandlens/internal/service/mentions"
	"github.com/brandlens/brandlens/pkg/textx"
)

const (
	maxPromptRunes = 2000

	// reasonMissingCredentials marks result entries for models filtered out
	// before dispatch.
	reasonMissingCredentials = "missing_credentials"
	genericFailureMessage    = "service temporarily unavailable"
)

// ProviderRegistry resolves a model identifier to its adapter.
type ProviderRegistry interface {
	Provider(model string) (domain.Provider, error)
}

// FanOutRequest is one validated query submission.
type FanOutRequest struct {
	UserID      string
	QueryText   string
	Models      []string
	Brands      []string
	BrandListID string
}

// ModelResult is one model's entry in the fan-out response, in the order the
// models were requested.
type ModelResult struct {
	Model         string
	Success       bool
	RunID         string
	ResponseText  string
	Mentions      []mentions.Match
	APIKeySource  string
	UsedFreeQuery bool
	ErrorMessage  string
}

// FanOutResponse aggregates all per-model outcomes of one query.
type FanOutResponse struct {
	QueryID string
	Results []ModelResult
}

// FanOutService runs a prompt against several AI backends concurrently and
// persists what came back.
type FanOutService struct {
	queries    domain.QueryRepository
	runs       domain.RunRepository
	brands     domain.BrandRepository
	mentions   domain.MentionRepository
	brandLists domain.BrandListRepository
	creds      domain.CredentialStore
	quota      domain.QuotaService
	limiter    domain.RateLimiter
	providers  ProviderRegistry
	extractor  *mentions.Extractor

	platformKeys map[string]string
	maxRespRunes int
	// prod collapses provider failure detail in client-facing messages.
	prod bool
}

// FanOutDeps bundles the collaborators for NewFanOutService.
type FanOutDeps struct {
	Queries    domain.QueryRepository
	Runs       domain.RunRepository
	Brands     domain.BrandRepository
	Mentions   domain.MentionRepository
	BrandLists domain.BrandListRepository
	Creds      domain.CredentialStore
	Quota      domain.QuotaService
	Limiter    domain.RateLimiter
	Providers  ProviderRegistry
	Extractor  *mentions.Extractor

	PlatformKeys     map[string]string
	MaxResponseRunes int
	Prod             bool
}

func NewFanOutService(d FanOutDeps) *FanOutService {
	return &FanOutService{
		queries:      d.Queries,
		runs:         d.Runs,
		brands:       d.Brands,
		mentions:     d.Mentions,
		brandLists:   d.BrandLists,
		creds:        d.Creds,
		quota:        d.Quota,
		limiter:      d.Limiter,
		providers:    d.Providers,
		extractor:    d.Extractor,
		platformKeys: d.PlatformKeys,
		maxRespRunes: d.MaxResponseRunes,
		prod:         d.Prod,
	}
}

// Execute validates and admits the request, resolves credentials, then fans
// the prompt out to every accepted model. Pre-fan-out failures return an
// error; per-model failures come back as entries in the response.
func (s *FanOutService) Execute(ctx domain.Context, req FanOutRequest) (FanOutResponse, error) {
	if err := s.validate(req); err != nil {
		return FanOutResponse{}, err
	}

	allowed, retryAfter, err := s.limiter.Allow(ctx, req.UserID)
	if err != nil {
		slog.Warn("rate limiter errored, admitting request", slog.Any("error", err))
	}
	if !allowed {
		observability.RateLimitRejectionsTotal.Inc()
		return FanOutResponse{}, fmt.Errorf("op=fanout.execute retry_after=%s: %w", retryAfter, domain.ErrRateLimited)
	}

	brandNames, err := s.resolveBrands(ctx, req)
	if err != nil {
		return FanOutResponse{}, err
	}

	res, err := s.resolveCredentials(ctx, req)
	if err != nil {
		return FanOutResponse{}, err
	}
	if len(res.Accepted) == 0 {
		return FanOutResponse{}, &domain.CredentialsRequiredError{Missing: res.Missing}
	}
	if res.FreeTier {
		if err := s.quota.ConsumeFreeQuota(ctx, req.UserID); err != nil {
			slog.Warn("free quota consume failed", slog.String("user_id", req.UserID), slog.Any("error", err))
		}
	}

	queryID, err := s.queries.Create(ctx, domain.Query{
		UserID:      req.UserID,
		BrandListID: req.BrandListID,
		Prompt:      req.QueryText,
	})
	if err != nil {
		return FanOutResponse{}, fmt.Errorf("op=fanout.execute: %w: %v", domain.ErrPersistence, err)
	}

	observability.FanOutsTotal.Inc()
	results := s.dispatch(ctx, queryID, req, res, brandNames)

	slog.Info("fan-out completed",
		slog.String("query_id", queryID),
		slog.String("user_id", req.UserID),
		slog.Int("models", len(req.Models)),
		slog.Int("accepted", len(res.Accepted)),
		slog.Bool("free_tier", res.FreeTier))
	return FanOutResponse{QueryID: queryID, Results: results}, nil
}

func (s *FanOutService) validate(req FanOutRequest) error {
	n := utf8.RuneCountInString(req.QueryText)
	if n == 0 || n > maxPromptRunes {
		return fmt.Errorf("op=fanout.validate: query_text length %d: %w", n, domain.ErrInvalidArgument)
	}
	if len(req.Models) == 0 {
		return fmt.Errorf("op=fanout.validate: no models requested: %w", domain.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(req.Models))
	for _, m := range req.Models {
		if !domain.IsKnownModel(m) {
			return fmt.Errorf("op=fanout.validate: unknown model %q: %w", m, domain.ErrInvalidArgument)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("op=fanout.validate: duplicate model %q: %w", m, domain.ErrInvalidArgument)
		}
		seen[m] = struct{}{}
	}
	if len(req.Brands) == 0 && req.BrandListID == "" {
		return fmt.Errorf("op=fanout.validate: no brands to track: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *FanOutService) resolveBrands(ctx domain.Context, req FanOutRequest) ([]string, error) {
	if req.BrandListID == "" {
		return req.Brands, nil
	}
	bl, err := s.brandLists.Get(ctx, req.BrandListID)
	if err != nil {
		return nil, err
	}
	// Ownership check hides other users' lists behind the same 404.
	if bl.UserID != req.UserID {
		return nil, fmt.Errorf("op=fanout.resolve_brands: %w", domain.ErrNotFound)
	}
	if len(req.Brands) > 0 {
		return req.Brands, nil
	}
	return bl.BrandNames, nil
}

func (s *FanOutService) resolveCredentials(ctx domain.Context, req FanOutRequest) (credentials.Resolution, error) {
	freeQuota, err := s.quota.HasFreeQuota(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return credentials.Resolution{}, err
		}
		slog.Warn("quota check failed, assuming exhausted", slog.Any("error", err))
		freeQuota = false
	}

	userKeys := make(map[string]string, len(req.Models))
	if !freeQuota {
		for _, m := range req.Models {
			key, err := s.creds.DecryptedKey(ctx, req.UserID, m)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					slog.Warn("credential lookup failed",
						slog.String("provider", m), slog.Any("error", err))
				}
				continue
			}
			userKeys[m] = key
		}
	}
	return credentials.Resolve(req.Models, freeQuota, s.platformKeys, userKeys), nil
}

// dispatch runs one goroutine per accepted model and writes each outcome into
// the slot matching the originally requested model order. Completion order
// never changes response order, and one model's failure never cancels the
// others.
func (s *FanOutService) dispatch(ctx domain.Context, queryID string, req FanOutRequest, res credentials.Resolution, brandNames []string) []ModelResult {
	slot := make(map[string]int, len(req.Models))
	results := make([]ModelResult, len(req.Models))
	for i, m := range req.Models {
		slot[m] = i
		results[i] = ModelResult{
			Model:         m,
			APIKeySource:  domain.KeySourceUser,
			UsedFreeQuery: res.FreeTier,
			ErrorMessage:  reasonMissingCredentials,
		}
	}

	var wg sync.WaitGroup
	for _, acc := range res.Accepted {
		wg.Add(1)
		go func(acc credentials.Accepted) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("model goroutine panicked",
						slog.String("model", acc.Model), slog.Any("panic", r))
					results[slot[acc.Model]] = s.failure(acc, res.FreeTier, fmt.Errorf("%w: panic", domain.ErrInternal))
				}
			}()
			results[slot[acc.Model]] = s.runModel(ctx, queryID, req.UserID, acc, res.FreeTier, req.QueryText, brandNames)
		}(acc)
	}
	wg.Wait()
	return results
}

func (s *FanOutService) runModel(ctx domain.Context, queryID, userID string, acc credentials.Accepted, freeTier bool, prompt string, brandNames []string) ModelResult {
	provider, err := s.providers.Provider(acc.Model)
	if err != nil {
		return s.failure(acc, freeTier, err)
	}

	raw, err := provider.Query(ctx, prompt, acc.Key)
	if err != nil {
		observability.FanOutModelsTotal.WithLabelValues(acc.Model, "provider_error").Inc()
		slog.Warn("model call failed",
			slog.String("query_id", queryID),
			slog.String("model", acc.Model),
			slog.Any("error", err))
		return s.failure(acc, freeTier, err)
	}

	text := textx.TruncateRunes(textx.SanitizeText(raw), s.maxRespRunes)
	found := s.extractor.Extract(text, brandNames)

	runID, err := s.persistRun(ctx, queryID, userID, acc.Model, text, found)
	if err != nil {
		observability.FanOutModelsTotal.WithLabelValues(acc.Model, "persistence_error").Inc()
		slog.Error("run persistence failed",
			slog.String("query_id", queryID),
			slog.String("model", acc.Model),
			slog.Any("error", err))
		return s.failure(acc, freeTier, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
	}

	observability.FanOutModelsTotal.WithLabelValues(acc.Model, "success").Inc()
	observability.MentionsExtractedTotal.WithLabelValues(acc.Model).Add(float64(len(found)))
	return ModelResult{
		Model:         acc.Model,
		Success:       true,
		RunID:         runID,
		ResponseText:  text,
		Mentions:      found,
		APIKeySource:  acc.Source,
		UsedFreeQuery: freeTier,
	}
}

// persistRun writes the run, resolves each distinct brand once, then writes
// the mention rows. All writes share the fan-out goroutine; there is no
// cross-model transaction.
func (s *FanOutService) persistRun(ctx domain.Context, queryID, userID, model, text string, found []mentions.Match) (string, error) {
	runID, err := s.runs.Create(ctx, domain.Run{QueryID: queryID, Model: model, ResponseText: text})
	if err != nil {
		return "", err
	}

	brandIDs := make(map[string]string)
	for _, name := range mentions.DistinctBrands(found) {
		b, err := s.brands.GetOrCreate(ctx, userID, name)
		if err != nil {
			return "", err
		}
		brandIDs[name] = b.ID
	}
	for _, m := range found {
		_, err := s.mentions.Create(ctx, domain.Mention{
			RunID:     runID,
			BrandID:   brandIDs[m.Brand],
			BrandName: m.Brand,
			Rank:      m.Rank,
			Position:  m.Position,
			Context:   m.Context,
		})
		if err != nil {
			return "", err
		}
	}
	return runID, nil
}

func (s *FanOutService) failure(acc credentials.Accepted, freeTier bool, err error) ModelResult {
	msg := err.Error()
	if s.prod {
		msg = genericFailureMessage
	}
	return ModelResult{
		Model:         acc.Model,
		APIKeySource:  acc.Source,
		UsedFreeQuery: freeTier,
		ErrorMessage:  msg,
	}
}
