package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// BrandListRepo loads brand lists, including the ordered member names.
type BrandListRepo struct{ Pool PgxPool }

func NewBrandListRepo(p PgxPool) *BrandListRepo { return &BrandListRepo{Pool: p} }

// Get loads a brand list by id.
func (r *BrandListRepo) Get(ctx domain.Context, id string) (domain.BrandList, error) {
	tracer := otel.Tracer("repo.brand_lists")
	ctx, span := tracer.Start(ctx, "brand_lists.Get")
	defer span.End()
	sql := `SELECT id, user_id, name, COALESCE(description,''), brand_names, created_at FROM brand_lists WHERE id=$1`
	var bl domain.BrandList
	err := r.Pool.QueryRow(ctx, sql, id).
		Scan(&bl.ID, &bl.UserID, &bl.Name, &bl.Description, &bl.BrandNames, &bl.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BrandList{}, fmt.Errorf("op=brand_list.get: %w", domain.ErrNotFound)
		}
		return domain.BrandList{}, fmt.Errorf("op=brand_list.get: %w", err)
	}
	return bl, nil
}
