package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAuthRequired        = errors.New("authentication required")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrCredentialsRequired = errors.New("credentials required")
	ErrProvider            = errors.New("provider error")
	ErrPersistence         = errors.New("persistence error")
	ErrInternal            = errors.New("internal error")
)

// Provider failure kinds; all match ErrProvider via errors.Is.
var (
	ErrProviderAuth  = fmt.Errorf("%w: authentication failed", ErrProvider)
	ErrProviderEmpty = fmt.Errorf("%w: empty completion", ErrProvider)
)

// CredentialsRequiredError is raised when no requested model has a usable
// credential. It carries the full list of providers the user must configure.
type CredentialsRequiredError struct {
	Missing []string
}

func (e *CredentialsRequiredError) Error() string {
	return "credentials required for providers: " + strings.Join(e.Missing, ", ")
}

// Is lets errors.Is(err, ErrCredentialsRequired) match the typed error.
func (e *CredentialsRequiredError) Is(target error) bool {
	return target == ErrCredentialsRequired
}

// Model identifiers accepted by the fan-out. Model and provider are 1:1 here;
// each identifier dispatches to exactly one adapter.
const (
	ModelChatGPT    = "chatgpt"
	ModelClaude     = "claude"
	ModelGemini     = "gemini"
	ModelPerplexity = "perplexity"
)

// KnownModels lists every dispatchable model in canonical order.
var KnownModels = []string{ModelChatGPT, ModelClaude, ModelGemini, ModelPerplexity}

// IsKnownModel reports whether id names a supported backend.
func IsKnownModel(id string) bool {
	for _, m := range KnownModels {
		if m == id {
			return true
		}
	}
	return false
}

// Credential tiers reported per fan-out result entry.
const (
	KeySourceUser     = "user"
	KeySourcePlatform = "platform"
)

// User owns brand lists, credentials and a free-query allowance.
type User struct {
	ID               string
	Email            string
	FreeQueriesUsed  int
	FreeQueriesLimit int
	CreatedAt        time.Time
}

// Brand is a tracked name owned by a user. Lookups are case-sensitive and
// exact; normalization happens only during matching, never at storage time.
type Brand struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// BrandList is an ordered set of brand names tracked together.
type BrandList struct {
	ID          string
	UserID      string
	Name        string
	Description string
	BrandNames  []string
	CreatedAt   time.Time
}

// Credential is a stored provider API key. Key material is encrypted at rest;
// only the store can hand out plaintext.
type Credential struct {
	ID              string
	UserID          string
	Provider        string
	Valid           bool
	LastValidatedAt time.Time
}

// Query is one submitted prompt; immutable once created.
type Query struct {
	ID          string
	UserID      string
	BrandListID string
	Prompt      string
	CreatedAt   time.Time
}

// Run is one model's attempt to answer one query. Only successful calls are
// persisted; failures surface in the API response instead.
type Run struct {
	ID           string
	QueryID      string
	Model        string
	ResponseText string
	CreatedAt    time.Time
}

// Mention is one detected occurrence of a tracked brand within a run.
// Rank is the 1-based order of the brand's first occurrence among all distinct
// brands detected in the run; repeat occurrences reuse the brand's rank.
type Mention struct {
	ID        string
	RunID     string
	BrandID   string
	BrandName string
	Rank      int
	Position  int
	Context   string
	CreatedAt time.Time
}

// RunWithMentions and QueryWithRuns shape the analytics window fetch.
type RunWithMentions struct {
	Run      Run
	Mentions []Mention
}

type QueryWithRuns struct {
	Query Query
	Runs  []RunWithMentions
}

// Repositories (ports)

type QueryRepository interface {
	Create(ctx Context, q Query) (string, error)
}

type RunRepository interface {
	Create(ctx Context, r Run) (string, error)
}

type BrandRepository interface {
	// GetOrCreate resolves a brand by exact (owner, name), creating it on miss.
	GetOrCreate(ctx Context, userID, name string) (Brand, error)
}

type MentionRepository interface {
	Create(ctx Context, m Mention) (string, error)
}

type BrandListRepository interface {
	Get(ctx Context, id string) (BrandList, error)
}

type AnalyticsRepository interface {
	// QueriesWithMentions loads the persisted window for aggregation, newest last.
	QueriesWithMentions(ctx Context, brandListID string, from, to time.Time) ([]QueryWithRuns, error)
}

// CredentialStore hands out decrypted provider keys; ErrNotFound when the user
// has no valid key for the provider.
type CredentialStore interface {
	DecryptedKey(ctx Context, userID, provider string) (string, error)
}

// QuotaService is the free-tier allowance collaborator.
type QuotaService interface {
	HasFreeQuota(ctx Context, userID string) (bool, error)
	ConsumeFreeQuota(ctx Context, userID string) error
}

// TokenVerifier is the session collaborator: it maps a bearer token to a user
// identity or fails with ErrAuthRequired.
type TokenVerifier interface {
	Verify(ctx Context, token string) (string, error)
}

// RateLimiter is an injected admission gate keyed by user. Implementations
// back the window with a shared store so the limit holds across instances.
type RateLimiter interface {
	Allow(ctx Context, userID string) (allowed bool, retryAfter time.Duration, err error)
}

// Provider is the uniform adapter contract: one implementation per backend.
type Provider interface {
	Name() string
	Query(ctx Context, prompt, apiKey string) (string, error)
}

// Context is an alias so adapters and usecases share the std context type.
type Context = context.Context
