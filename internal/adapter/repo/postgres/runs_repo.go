package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// RunRepo persists successful model runs. Failed calls never reach this repo.
type RunRepo struct{ Pool PgxPool }

func NewRunRepo(p PgxPool) *RunRepo { return &RunRepo{Pool: p} }

// Create inserts a run and returns its id.
func (r *RunRepo) Create(ctx domain.Context, run domain.Run) (string, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.Create")
	defer span.End()
	id := run.ID
	if id == "" {
		id = uuid.New().String()
	}
	sql := `INSERT INTO runs (id, query_id, model, response_text, created_at) VALUES ($1,$2,$3,$4,$5)`
	_, err := r.Pool.Exec(ctx, sql, id, run.QueryID, run.Model, run.ResponseText, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=run.create: %w", err)
	}
	return id, nil
}
