package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// MentionRepo persists detected brand mentions.
type MentionRepo struct{ Pool PgxPool }

func NewMentionRepo(p PgxPool) *MentionRepo { return &MentionRepo{Pool: p} }

// Create inserts a mention and returns its id.
func (r *MentionRepo) Create(ctx domain.Context, m domain.Mention) (string, error) {
	tracer := otel.Tracer("repo.mentions")
	ctx, span := tracer.Start(ctx, "mentions.Create")
	defer span.End()
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	sql := `INSERT INTO mentions (id, run_id, brand_id, rank, position, context, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, sql, id, m.RunID, m.BrandID, m.Rank, m.Position, m.Context, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=mention.create: %w", err)
	}
	return id, nil
}
