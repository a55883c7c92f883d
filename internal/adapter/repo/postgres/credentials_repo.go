package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/brandlens/brandlens/internal/domain"
	"github.com/brandlens/brandlens/internal/service/credentials"
)

// CredentialRepo stores provider API keys encrypted at rest and implements
// domain.CredentialStore. Plaintext never touches the database.
type CredentialRepo struct {
	Pool      PgxPool
	masterKey string
}

func NewCredentialRepo(p PgxPool, masterKey string) *CredentialRepo {
	return &CredentialRepo{Pool: p, masterKey: masterKey}
}

var _ domain.CredentialStore = (*CredentialRepo)(nil)

// Save upserts the user's key for a provider, sealing it first.
func (r *CredentialRepo) Save(ctx domain.Context, userID, provider, plaintextKey string) error {
	tracer := otel.Tracer("repo.credentials")
	ctx, span := tracer.Start(ctx, "credentials.Save")
	defer span.End()
	sealed, err := credentials.EncryptKey(r.masterKey, plaintextKey)
	if err != nil {
		return fmt.Errorf("op=credential.save: %w", err)
	}
	sql := `INSERT INTO credentials (id, user_id, provider, key_ciphertext, valid, last_validated_at)
	        VALUES ($1,$2,$3,$4,true,$5)
	        ON CONFLICT (user_id, provider) DO UPDATE SET
	          key_ciphertext = EXCLUDED.key_ciphertext,
	          valid = true,
	          last_validated_at = EXCLUDED.last_validated_at`
	_, err = r.Pool.Exec(ctx, sql, uuid.New().String(), userID, provider, sealed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=credential.save: %w", err)
	}
	return nil
}

// DecryptedKey returns the plaintext key for (user, provider); ErrNotFound
// when no valid key is stored.
func (r *CredentialRepo) DecryptedKey(ctx domain.Context, userID, provider string) (string, error) {
	tracer := otel.Tracer("repo.credentials")
	ctx, span := tracer.Start(ctx, "credentials.DecryptedKey")
	defer span.End()
	sql := `SELECT key_ciphertext FROM credentials WHERE user_id=$1 AND provider=$2 AND valid`
	var sealed string
	if err := r.Pool.QueryRow(ctx, sql, userID, provider).Scan(&sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("op=credential.decrypted_key: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("op=credential.decrypted_key: %w", err)
	}
	plain, err := credentials.DecryptKey(r.masterKey, sealed)
	if err != nil {
		return "", fmt.Errorf("op=credential.decrypted_key: %w", err)
	}
	return plain, nil
}
