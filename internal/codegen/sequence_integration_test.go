//go:build integration

package codegen_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefops/internal/codegen"
	"reliefops/internal/platform/postgres"
	"reliefops/pkg/testutil/containers"
)

func TestRedisSequence(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	assertConcurrentUnique(t, codegen.NewRedisSequence(rc.Client))
}

func TestPostgresSequence(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, postgres.Bootstrap(ctx, pg.DB))
	require.NoError(t, pg.Truncate(ctx, "code_sequences"))

	assertConcurrentUnique(t, codegen.NewPostgresSequence(pg.DB))
}

func assertConcurrentUnique(t *testing.T, src codegen.SequenceSource) {
	t.Helper()
	const draws = 50
	ctx := context.Background()

	values := make(chan int64, draws)
	var wg sync.WaitGroup
	for range draws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := src.Next(ctx, codegen.KindRescueOperation)
			assert.NoError(t, err)
			values <- n
		}()
	}
	wg.Wait()
	close(values)

	seen := map[int64]bool{}
	for v := range values {
		assert.False(t, seen[v], "duplicate hint %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, draws)

	other, err := src.Next(ctx, codegen.KindShelter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestPostgresHighWater(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, postgres.Bootstrap(ctx, pg.DB))
	require.NoError(t, pg.Truncate(ctx, "family_groups"))

	hw := codegen.NewPostgresHighWater(pg.DB)
	last, err := hw.LastIssued(ctx, codegen.KindFamilyGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	for _, code := range []string{"FAM-2025-00040", "FAM-2026-00007", "legacy-import"} {
		_, err := pg.DB.ExecContext(ctx,
			`INSERT INTO family_groups (id, code, name, created_at) VALUES ($1, $2, 'Haddad', now())`,
			uuid.New(), code)
		require.NoError(t, err)
	}

	last, err = hw.LastIssued(ctx, codegen.KindFamilyGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(40), last)

	seq := codegen.NewMemorySequence()
	require.NoError(t, codegen.SeedFrom(ctx, seq, hw))
	n, err := seq.Next(ctx, codegen.KindFamilyGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(41), n)
}
