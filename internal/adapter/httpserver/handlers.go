package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/mentions"
	"github.com/brandlens/brandlens/internal/usecase"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

// Probe checks one dependency for readiness.
type Probe func(ctx context.Context) error

// FanOutExecutor runs one query submission end to end.
type FanOutExecutor interface {
	Execute(ctx domain.Context, req usecase.FanOutRequest) (usecase.FanOutResponse, error)
}

// AnalyticsReporter computes the analytics payloads.
type AnalyticsReporter interface {
	BrandReport(ctx domain.Context, brandListID string, days int) (usecase.BrandReport, error)
	CompetitiveReport(ctx domain.Context, brandListID string, days int) (usecase.CompetitiveReport, error)
}

// Server bundles the handlers' collaborators.
type Server struct {
	FanOut          FanOutExecutor
	Analytics       AnalyticsReporter
	BrandLists      domain.BrandListRepository
	MaxRequestBytes int64
	Probes          map[string]Probe
}

type queryRequest struct {
	QueryText   string   `json:"query_text" validate:"required,min=1,max=2000"`
	Models      []string `json:"models" validate:"required,min=1,max=4,dive,oneof=chatgpt claude gemini perplexity"`
	Brands      []string `json:"brands" validate:"omitempty,max=50,dive,min=1,max=100,brandname"`
	BrandListID string   `json:"brand_list_id" validate:"omitempty,uuid4"`
}

type mentionDTO struct {
	Brand    string `json:"brand"`
	Rank     int    `json:"rank"`
	Position int    `json:"position"`
	Context  string `json:"context"`
}

type resultDTO struct {
	Model         string       `json:"model"`
	Success       bool         `json:"success"`
	RunID         string       `json:"run_id,omitempty"`
	ResponseText  string       `json:"response_text,omitempty"`
	Mentions      []mentionDTO `json:"mentions,omitempty"`
	APIKeySource  string       `json:"api_key_source"`
	UsedFreeQuery bool         `json:"used_free_query"`
	Error         string       `json:"error,omitempty"`
}

type summaryDTO struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type queryResponse struct {
	Success bool        `json:"success"`
	QueryID string      `json:"query_id"`
	Results []resultDTO `json:"results"`
	Summary summaryDTO  `json:"summary"`
}

// QueriesHandler accepts a prompt and fans it out to the requested models.
func (s *Server) QueriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestBytes)

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("op=queries.decode: %w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("op=queries.validate: %w", domain.ErrInvalidArgument), err.Error())
			return
		}

		resp, err := s.FanOut.Execute(r.Context(), usecase.FanOutRequest{
			UserID:      UserIDFrom(r),
			QueryText:   req.QueryText,
			Models:      req.Models,
			Brands:      req.Brands,
			BrandListID: req.BrandListID,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}

		out := queryResponse{Success: true, QueryID: resp.QueryID}
		for _, res := range resp.Results {
			out.Summary.Total++
			if res.Success {
				out.Summary.Successful++
			} else {
				out.Summary.Failed++
			}
			out.Results = append(out.Results, resultDTO{
				Model:         res.Model,
				Success:       res.Success,
				RunID:         res.RunID,
				ResponseText:  res.ResponseText,
				Mentions:      mentionDTOs(res.Mentions),
				APIKeySource:  res.APIKeySource,
				UsedFreeQuery: res.UsedFreeQuery,
				Error:         res.ErrorMessage,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func mentionDTOs(ms []mentions.Match) []mentionDTO {
	out := make([]mentionDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, mentionDTO{Brand: m.Brand, Rank: m.Rank, Position: m.Position, Context: m.Context})
	}
	return out
}

// AnalyticsBrandsHandler serves per-brand metrics over a trailing window.
func (s *Server) AnalyticsBrandsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brandListID, days, err := s.analyticsParams(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		report, err := s.Analytics.BrandReport(r.Context(), brandListID, days)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// AnalyticsCompetitiveHandler serves pairwise win rates over a trailing window.
func (s *Server) AnalyticsCompetitiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brandListID, days, err := s.analyticsParams(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		report, err := s.Analytics.CompetitiveReport(r.Context(), brandListID, days)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// analyticsParams parses and authorizes the shared analytics query params.
// The ownership check answers 404 for lists owned by other users.
func (s *Server) analyticsParams(r *http.Request) (string, int, error) {
	brandListID := r.URL.Query().Get("brand_list_id")
	if brandListID == "" {
		return "", 0, fmt.Errorf("op=analytics.params: brand_list_id required: %w", domain.ErrInvalidArgument)
	}
	days := defaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAnalyticsDays {
			return "", 0, fmt.Errorf("op=analytics.params: days=%q: %w", raw, domain.ErrInvalidArgument)
		}
		days = n
	}
	bl, err := s.BrandLists.Get(r.Context(), brandListID)
	if err != nil {
		return "", 0, err
	}
	if bl.UserID != UserIDFrom(r) {
		return "", 0, fmt.Errorf("op=analytics.params: %w", domain.ErrNotFound)
	}
	return brandListID, days, nil
}

// HealthzHandler is a trivial liveness probe.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every dependency probe and reports per-dependency state.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		deps := make(map[string]string, len(s.Probes))
		for name, probe := range s.Probes {
			if err := probe(r.Context()); err != nil {
				slog.Warn("readiness probe failed", slog.String("dependency", name), slog.Any("error", err))
				deps[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "dependencies": deps})
	}
}
