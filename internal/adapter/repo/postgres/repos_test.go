package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/brandlens/internal/domain"
)

func TestQueryRepo_Create(t *testing.T) {
	t.Parallel()
	var gotSQL string
	pool := &fakePool{execFn: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		return pgconn.CommandTag{}, nil
	}}
	repo := NewQueryRepo(pool)

	id, err := repo.Create(context.Background(), domain.Query{
		UserID: "u1", BrandListID: "bl1", Prompt: "best jeans?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, gotSQL, "INSERT INTO queries")

	pool.execFn = func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, assert.AnError
	}
	_, err = repo.Create(context.Background(), domain.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=query.create")
}

func TestRunRepo_Create_KeepsGivenID(t *testing.T) {
	t.Parallel()
	pool := &fakePool{execFn: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
		assert.Equal(t, "run-1", args[0])
		return pgconn.CommandTag{}, nil
	}}
	id, err := NewRunRepo(pool).Create(context.Background(), domain.Run{ID: "run-1", QueryID: "q1", Model: "chatgpt"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}

func TestBrandRepo_GetOrCreate(t *testing.T) {
	t.Parallel()
	created := time.Now().UTC()
	pool := &fakePool{queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
		assert.Contains(t, sql, "ON CONFLICT (user_id, name)")
		assert.Equal(t, "u1", args[1])
		assert.Equal(t, "Boragó", args[2])
		return fakeRow{values: []any{"brand-1", created}}
	}}
	b, err := NewBrandRepo(pool).GetOrCreate(context.Background(), "u1", "Boragó")
	require.NoError(t, err)
	assert.Equal(t, "brand-1", b.ID)
	assert.Equal(t, "u1", b.UserID)
	assert.Equal(t, "Boragó", b.Name)
	assert.Equal(t, created, b.CreatedAt)
}

func TestMentionRepo_Create(t *testing.T) {
	t.Parallel()
	pool := &fakePool{execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		assert.Contains(t, sql, "INSERT INTO mentions")
		return pgconn.CommandTag{}, nil
	}}
	id, err := NewMentionRepo(pool).Create(context.Background(), domain.Mention{RunID: "r1", BrandID: "b1", Rank: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestBrandListRepo_Get(t *testing.T) {
	t.Parallel()
	created := time.Now().UTC()
	pool := &fakePool{queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{values: []any{"bl1", "u1", "Jeans", "denim brands", []string{"Levis", "Wrangler"}, created}}
	}}
	bl, err := NewBrandListRepo(pool).Get(context.Background(), "bl1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Levis", "Wrangler"}, bl.BrandNames)

	pool.queryRowFn = func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{err: pgx.ErrNoRows}
	}
	_, err = NewBrandListRepo(pool).Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_Quota(t *testing.T) {
	t.Parallel()
	pool := &fakePool{queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{values: []any{true}}
	}}
	repo := NewUserRepo(pool)

	ok, err := repo.HasFreeQuota(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	pool.queryRowFn = func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{err: pgx.ErrNoRows}
	}
	_, err = repo.HasFreeQuota(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	pool.execFn = func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		assert.Contains(t, sql, "free_queries_used < free_queries_limit")
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	require.NoError(t, repo.ConsumeFreeQuota(context.Background(), "u1"))

	pool.execFn = func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	err = repo.ConsumeFreeQuota(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowance exhausted")
}

func TestCredentialRepo_SaveThenDecrypt(t *testing.T) {
	t.Parallel()
	var sealed string
	pool := &fakePool{
		execFn: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			assert.Contains(t, sql, "ON CONFLICT (user_id, provider)")
			sealed = args[3].(string)
			return pgconn.CommandTag{}, nil
		},
	}
	repo := NewCredentialRepo(pool, "master-secret")

	require.NoError(t, repo.Save(context.Background(), "u1", "gemini", "gk-plain"))
	require.NotEmpty(t, sealed)
	assert.NotContains(t, sealed, "gk-plain")

	pool.queryRowFn = func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{values: []any{sealed}}
	}
	plain, err := repo.DecryptedKey(context.Background(), "u1", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "gk-plain", plain)
}

func TestCredentialRepo_DecryptedKeyNotFound(t *testing.T) {
	t.Parallel()
	pool := &fakePool{queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return fakeRow{err: pgx.ErrNoRows}
	}}
	_, err := NewCredentialRepo(pool, "master-secret").DecryptedKey(context.Background(), "u1", "claude")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
