package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/auth"
)

// TokenRepo maps bearer tokens to users and implements domain.TokenVerifier.
type TokenRepo struct{ Pool PgxPool }

func NewTokenRepo(p PgxPool) *TokenRepo { return &TokenRepo{Pool: p} }

var _ domain.TokenVerifier = (*TokenRepo)(nil)

// Verify resolves "<token_id>.<secret>" to the owning user id. Any parse,
// lookup or hash mismatch collapses to ErrAuthRequired so callers cannot
// distinguish unknown ids from bad secrets.
func (r *TokenRepo) Verify(ctx domain.Context, token string) (string, error) {
	tracer := otel.Tracer("repo.api_tokens")
	ctx, span := tracer.Start(ctx, "api_tokens.Verify")
	defer span.End()

	id, secret, ok := auth.SplitToken(token)
	if !ok {
		return "", fmt.Errorf("op=token.verify: %w", domain.ErrAuthRequired)
	}

	sql := `SELECT user_id, token_hash FROM api_tokens WHERE id=$1`
	var userID, hash string
	if err := r.Pool.QueryRow(ctx, sql, id).Scan(&userID, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("op=token.verify: %w", domain.ErrAuthRequired)
		}
		return "", fmt.Errorf("op=token.verify: %w", err)
	}
	if !auth.VerifySecret(secret, hash) {
		return "", fmt.Errorf("op=token.verify: %w", domain.ErrAuthRequired)
	}
	return userID, nil
}
