package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// BrandRepo resolves tracked brands by exact (owner, name). Names are stored
// verbatim; normalization is a matching concern, never a storage one.
type BrandRepo struct{ Pool PgxPool }

func NewBrandRepo(p PgxPool) *BrandRepo { return &BrandRepo{Pool: p} }

// GetOrCreate returns the brand for (userID, name), inserting on first sight.
// The upsert keeps concurrent fan-out goroutines from racing on the unique
// (user_id, name) constraint.
func (r *BrandRepo) GetOrCreate(ctx domain.Context, userID, name string) (domain.Brand, error) {
	tracer := otel.Tracer("repo.brands")
	ctx, span := tracer.Start(ctx, "brands.GetOrCreate")
	defer span.End()
	sql := `INSERT INTO brands (id, user_id, name, created_at) VALUES ($1,$2,$3,$4)
	        ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
	        RETURNING id, created_at`
	var b domain.Brand
	b.UserID = userID
	b.Name = name
	err := r.Pool.QueryRow(ctx, sql, uuid.New().String(), userID, name, time.Now().UTC()).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return domain.Brand{}, fmt.Errorf("op=brand.get_or_create: %w", err)
	}
	return b, nil
}
