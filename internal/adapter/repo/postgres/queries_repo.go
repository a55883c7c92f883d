package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// QueryRepo persists submitted queries. Rows are immutable once created.
type QueryRepo struct{ Pool PgxPool }

func NewQueryRepo(p PgxPool) *QueryRepo { return &QueryRepo{Pool: p} }

// Create inserts a new query and returns its id.
func (r *QueryRepo) Create(ctx domain.Context, q domain.Query) (string, error) {
	tracer := otel.Tracer("repo.queries")
	ctx, span := tracer.Start(ctx, "queries.Create")
	defer span.End()
	id := q.ID
	if id == "" {
		id = uuid.New().String()
	}
	sql := `INSERT INTO queries (id, user_id, brand_list_id, prompt, created_at) VALUES ($1,$2,$3,$4,$5)`
	_, err := r.Pool.Exec(ctx, sql, id, q.UserID, q.BrandListID, q.Prompt, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=query.create: %w", err)
	}
	return id, nil
}
