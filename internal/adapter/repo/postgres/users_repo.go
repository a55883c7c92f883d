package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
)

// UserRepo tracks user rows and the free-query allowance. It implements
// domain.QuotaService.
type UserRepo struct{ Pool PgxPool }

func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

var _ domain.QuotaService = (*UserRepo)(nil)

// Get loads a user by id.
func (r *UserRepo) Get(ctx domain.Context, id string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Get")
	defer span.End()
	sql := `SELECT id, email, free_queries_used, free_queries_limit, created_at FROM users WHERE id=$1`
	var u domain.User
	err := r.Pool.QueryRow(ctx, sql, id).
		Scan(&u.ID, &u.Email, &u.FreeQueriesUsed, &u.FreeQueriesLimit, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get: %w", err)
	}
	return u, nil
}

// HasFreeQuota reports whether the user still has free queries left.
func (r *UserRepo) HasFreeQuota(ctx domain.Context, userID string) (bool, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.HasFreeQuota")
	defer span.End()
	sql := `SELECT free_queries_used < free_queries_limit FROM users WHERE id=$1`
	var ok bool
	if err := r.Pool.QueryRow(ctx, sql, userID).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("op=user.has_free_quota: %w", domain.ErrNotFound)
		}
		return false, fmt.Errorf("op=user.has_free_quota: %w", err)
	}
	return ok, nil
}

// ConsumeFreeQuota spends one free query. The WHERE guard keeps concurrent
// batches from overspending the allowance.
func (r *UserRepo) ConsumeFreeQuota(ctx domain.Context, userID string) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.ConsumeFreeQuota")
	defer span.End()
	sql := `UPDATE users SET free_queries_used = free_queries_used + 1
	        WHERE id=$1 AND free_queries_used < free_queries_limit`
	tag, err := r.Pool.Exec(ctx, sql, userID)
	if err != nil {
		return fmt.Errorf("op=user.consume_free_quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=user.consume_free_quota: allowance exhausted: %w", domain.ErrInvalidArgument)
	}
	return nil
}
