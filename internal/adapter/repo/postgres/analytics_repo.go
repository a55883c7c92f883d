package postgres

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// AnalyticsRepo loads the persisted query window the aggregators work over.
type AnalyticsRepo struct{ Pool PgxPool }

func NewAnalyticsRepo(p PgxPool) *AnalyticsRepo { return &AnalyticsRepo{Pool: p} }

var _ domain.AnalyticsRepository = (*AnalyticsRepo)(nil)

// QueriesWithMentions loads every query for a brand list in [from, to] with
// its runs and mentions attached, queries ordered oldest first.
func (r *AnalyticsRepo) QueriesWithMentions(ctx domain.Context, brandListID string, from, to time.Time) ([]domain.QueryWithRuns, error) {
	tracer := otel.Tracer("repo.analytics")
	ctx, span := tracer.Start(ctx, "analytics.QueriesWithMentions")
	defer span.End()

	queries, order, err := r.loadQueries(ctx, brandListID, from, to)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}
	runsByQuery, runIndex, err := r.loadRuns(ctx, brandListID, from, to)
	if err != nil {
		return nil, err
	}
	if err := r.loadMentions(ctx, brandListID, from, to, runIndex); err != nil {
		return nil, err
	}

	out := make([]domain.QueryWithRuns, 0, len(order))
	for _, id := range order {
		qwr := domain.QueryWithRuns{Query: queries[id]}
		for _, rwm := range runsByQuery[id] {
			qwr.Runs = append(qwr.Runs, *rwm)
		}
		out = append(out, qwr)
	}
	return out, nil
}

func (r *AnalyticsRepo) loadQueries(ctx domain.Context, brandListID string, from, to time.Time) (map[string]domain.Query, []string, error) {
	sql := `SELECT id, user_id, brand_list_id, prompt, created_at FROM queries
	        WHERE brand_list_id=$1 AND created_at >= $2 AND created_at <= $3
	        ORDER BY created_at`
	rows, err := r.Pool.Query(ctx, sql, brandListID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("op=analytics.load_queries: %w", err)
	}
	defer rows.Close()

	queries := make(map[string]domain.Query)
	var order []string
	for rows.Next() {
		var q domain.Query
		if err := rows.Scan(&q.ID, &q.UserID, &q.BrandListID, &q.Prompt, &q.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("op=analytics.load_queries: %w", err)
		}
		queries[q.ID] = q
		order = append(order, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("op=analytics.load_queries: %w", err)
	}
	return queries, order, nil
}

func (r *AnalyticsRepo) loadRuns(ctx domain.Context, brandListID string, from, to time.Time) (map[string][]*domain.RunWithMentions, map[string]*domain.RunWithMentions, error) {
	sql := `SELECT r.id, r.query_id, r.model, r.response_text, r.created_at
	        FROM runs r JOIN queries q ON q.id = r.query_id
	        WHERE q.brand_list_id=$1 AND q.created_at >= $2 AND q.created_at <= $3
	        ORDER BY r.created_at`
	rows, err := r.Pool.Query(ctx, sql, brandListID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("op=analytics.load_runs: %w", err)
	}
	defer rows.Close()

	byQuery := make(map[string][]*domain.RunWithMentions)
	index := make(map[string]*domain.RunWithMentions)
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(&run.ID, &run.QueryID, &run.Model, &run.ResponseText, &run.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("op=analytics.load_runs: %w", err)
		}
		rwm := &domain.RunWithMentions{Run: run}
		byQuery[run.QueryID] = append(byQuery[run.QueryID], rwm)
		index[run.ID] = rwm
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("op=analytics.load_runs: %w", err)
	}
	return byQuery, index, nil
}

func (r *AnalyticsRepo) loadMentions(ctx domain.Context, brandListID string, from, to time.Time, runIndex map[string]*domain.RunWithMentions) error {
	sql := `SELECT m.id, m.run_id, m.brand_id, b.name, m.rank, m.position, m.context, m.created_at
	        FROM mentions m
	        JOIN brands b ON b.id = m.brand_id
	        JOIN runs r ON r.id = m.run_id
	        JOIN queries q ON q.id = r.query_id
	        WHERE q.brand_list_id=$1 AND q.created_at >= $2 AND q.created_at <= $3
	        ORDER BY m.position`
	rows, err := r.Pool.Query(ctx, sql, brandListID, from, to)
	if err != nil {
		return fmt.Errorf("op=analytics.load_mentions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Mention
		if err := rows.Scan(&m.ID, &m.RunID, &m.BrandID, &m.BrandName, &m.Rank, &m.Position, &m.Context, &m.CreatedAt); err != nil {
			return fmt.Errorf("op=analytics.load_mentions: %w", err)
		}
		if rwm, ok := runIndex[m.RunID]; ok {
			rwm.Mentions = append(rwm.Mentions, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("op=analytics.load_mentions: %w", err)
	}
	return nil
}
