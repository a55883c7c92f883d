package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/mentions"
	"github.com/brandlens/brandlens/internal/usecase"
)

const testListID = "7f8b2c1a-9d4e-4f6a-8b2c-1a9d4e4f6a8b"

type fanoutFn func(domain.Context, usecase.FanOutRequest) (usecase.FanOutResponse, error)

func (f fanoutFn) Execute(ctx domain.Context, req usecase.FanOutRequest) (usecase.FanOutResponse, error) {
	return f(ctx, req)
}

type fakeReporter struct {
	brand       usecase.BrandReport
	competitive usecase.CompetitiveReport
	err         error
}

func (r fakeReporter) BrandReport(domain.Context, string, int) (usecase.BrandReport, error) {
	return r.brand, r.err
}

func (r fakeReporter) CompetitiveReport(domain.Context, string, int) (usecase.CompetitiveReport, error) {
	return r.competitive, r.err
}

type brandListsFn func(domain.Context, string) (domain.BrandList, error)

func (f brandListsFn) Get(ctx domain.Context, id string) (domain.BrandList, error) {
	return f(ctx, id)
}

func ownedLists(owner string) brandListsFn {
	return func(_ domain.Context, id string) (domain.BrandList, error) {
		if id == testListID {
			return domain.BrandList{ID: id, UserID: owner}, nil
		}
		return domain.BrandList{}, fmt.Errorf("op=brand_list.get: %w", domain.ErrNotFound)
	}
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(context.WithValue(r.Context(), userIDKey{}, "u1"))
}

func TestQueriesHandler_Success(t *testing.T) {
	t.Parallel()
	srv := &Server{
		MaxRequestBytes: 51200,
		FanOut: fanoutFn(func(_ domain.Context, req usecase.FanOutRequest) (usecase.FanOutResponse, error) {
			assert.Equal(t, "u1", req.UserID)
			assert.Equal(t, []string{"chatgpt", "gemini"}, req.Models)
			return usecase.FanOutResponse{
				QueryID: "q-1",
				Results: []usecase.ModelResult{
					{Model: "chatgpt", Success: true, RunID: "r1", ResponseText: "Ambrosia wins",
						Mentions:     []mentions.Match{{Brand: "Ambrosia", Rank: 1, Position: 0, Context: "Ambrosia wins"}},
						APIKeySource: domain.KeySourceUser},
					{Model: "gemini", Success: false, APIKeySource: domain.KeySourceUser, ErrorMessage: "missing_credentials"},
				},
			}, nil
		}),
	}

	body := `{"query_text":"best restaurant?","models":["chatgpt","gemini"],"brands":["Ambrosia"]}`
	w := httptest.NewRecorder()
	srv.QueriesHandler()(w, authedRequest(http.MethodPost, "/v1/queries", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "q-1", resp.QueryID)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, summaryDTO{Total: 2, Successful: 1, Failed: 1}, resp.Summary)
	assert.Equal(t, "Ambrosia", resp.Results[0].Mentions[0].Brand)
	assert.Equal(t, "missing_credentials", resp.Results[1].Error)
}

func TestQueriesHandler_ValidationRejects(t *testing.T) {
	t.Parallel()
	srv := &Server{
		MaxRequestBytes: 51200,
		FanOut: fanoutFn(func(domain.Context, usecase.FanOutRequest) (usecase.FanOutResponse, error) {
			t.Fatal("usecase must not be reached")
			return usecase.FanOutResponse{}, nil
		}),
	}

	bodies := []string{
		`not json`,
		`{"query_text":"","models":["chatgpt"]}`,
		`{"query_text":"q","models":[]}`,
		`{"query_text":"q","models":["mistral"]}`,
		`{"query_text":"q","models":["chatgpt"],"brands":["<script>"]}`,
		`{"query_text":"q","models":["chatgpt"],"brands":["Levi's"]}`,
		`{"query_text":"q","models":["chatgpt"],"brand_list_id":"not-a-uuid"}`,
		fmt.Sprintf(`{"query_text":"%s","models":["chatgpt"]}`, strings.Repeat("x", 2001)),
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		srv.QueriesHandler()(w, authedRequest(http.MethodPost, "/v1/queries", body))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		assert.Contains(t, w.Body.String(), "INVALID_ARGUMENT")
	}
}

func TestQueriesHandler_OversizedBody(t *testing.T) {
	t.Parallel()
	srv := &Server{
		MaxRequestBytes: 64,
		FanOut: fanoutFn(func(domain.Context, usecase.FanOutRequest) (usecase.FanOutResponse, error) {
			t.Fatal("usecase must not be reached")
			return usecase.FanOutResponse{}, nil
		}),
	}
	body := fmt.Sprintf(`{"query_text":"%s","models":["chatgpt"]}`, strings.Repeat("y", 500))
	w := httptest.NewRecorder()
	srv.QueriesHandler()(w, authedRequest(http.MethodPost, "/v1/queries", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueriesHandler_ErrorMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rate limited", fmt.Errorf("op=x: %w", domain.ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"credentials", &domain.CredentialsRequiredError{Missing: []string{"chatgpt", "claude"}}, http.StatusPaymentRequired, "API_KEYS_REQUIRED"},
		{"not found", fmt.Errorf("op=x: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"persistence", fmt.Errorf("op=x: %w", domain.ErrPersistence), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := &Server{
				MaxRequestBytes: 51200,
				FanOut: fanoutFn(func(domain.Context, usecase.FanOutRequest) (usecase.FanOutResponse, error) {
					return usecase.FanOutResponse{}, tc.err
				}),
			}
			w := httptest.NewRecorder()
			srv.QueriesHandler()(w, authedRequest(http.MethodPost, "/v1/queries",
				`{"query_text":"q","models":["chatgpt"],"brands":["X"]}`))
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.wantCode)
		})
	}
}

func TestQueriesHandler_CredentialsPayloadListsProviders(t *testing.T) {
	t.Parallel()
	srv := &Server{
		MaxRequestBytes: 51200,
		FanOut: fanoutFn(func(domain.Context, usecase.FanOutRequest) (usecase.FanOutResponse, error) {
			return usecase.FanOutResponse{}, &domain.CredentialsRequiredError{Missing: []string{"chatgpt", "gemini"}}
		}),
	}
	w := httptest.NewRecorder()
	srv.QueriesHandler()(w, authedRequest(http.MethodPost, "/v1/queries",
		`{"query_text":"q","models":["chatgpt","gemini"],"brands":["X"]}`))

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, []string{"chatgpt", "gemini"}, env.Error.MissingProviders)
}

func TestAnalyticsBrandsHandler(t *testing.T) {
	t.Parallel()
	srv := &Server{
		Analytics:  fakeReporter{brand: usecase.BrandReport{BrandListID: testListID, Days: 30, TotalQueries: 4}},
		BrandLists: ownedLists("u1"),
	}

	w := httptest.NewRecorder()
	srv.AnalyticsBrandsHandler()(w, authedRequest(http.MethodGet, "/v1/analytics/brands?brand_list_id="+testListID, ""))
	require.Equal(t, http.StatusOK, w.Code)
	var report usecase.BrandReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 4, report.TotalQueries)
}

func TestAnalyticsHandlers_ParamValidation(t *testing.T) {
	t.Parallel()
	srv := &Server{
		Analytics:  fakeReporter{},
		BrandLists: ownedLists("u1"),
	}

	w := httptest.NewRecorder()
	srv.AnalyticsBrandsHandler()(w, authedRequest(http.MethodGet, "/v1/analytics/brands", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	srv.AnalyticsBrandsHandler()(w, authedRequest(http.MethodGet, "/v1/analytics/brands?brand_list_id="+testListID+"&days=0", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	srv.AnalyticsCompetitiveHandler()(w, authedRequest(http.MethodGet, "/v1/analytics/competitive?brand_list_id="+testListID+"&days=9999", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsHandlers_ForeignListHidden(t *testing.T) {
	t.Parallel()
	srv := &Server{
		Analytics:  fakeReporter{},
		BrandLists: ownedLists("someone-else"),
	}
	w := httptest.NewRecorder()
	srv.AnalyticsCompetitiveHandler()(w, authedRequest(http.MethodGet, "/v1/analytics/competitive?brand_list_id="+testListID, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	verifier := verifierFn(func(_ domain.Context, token string) (string, error) {
		if token == "tok1.good" {
			return "u1", nil
		}
		return "", fmt.Errorf("op=token.verify: %w", domain.ErrAuthRequired)
	})

	var gotUser string
	h := BearerAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFrom(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok1.good")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", gotUser)

	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer tok1.bad"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header: %q", header)
		assert.Contains(t, w.Body.String(), "AUTH_REQUIRED")
	}
}

type verifierFn func(domain.Context, string) (string, error)

func (f verifierFn) Verify(ctx domain.Context, token string) (string, error) { return f(ctx, token) }

func TestReadyzHandler(t *testing.T) {
	t.Parallel()
	srv := &Server{Probes: map[string]Probe{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	}}
	w := httptest.NewRecorder()
	srv.ReadyzHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	srv.Probes["redis"] = func(context.Context) error { return errors.New("down") }
	w = httptest.NewRecorder()
	srv.ReadyzHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestHealthzHandler(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	HealthzHandler()(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	t.Parallel()
	h := RequestID()(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestTimeoutMiddleware(t *testing.T) {
	t.Parallel()
	h := TimeoutMiddleware(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
