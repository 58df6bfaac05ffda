package mysql

import (
	"context"
	"errors"
	"sync"
	"testing"

	"food-order-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRepo_SeedIsInsertIfAbsent(t *testing.T) {
	repo := NewStockRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, 10, 5))
	require.NoError(t, repo.Seed(ctx, 10, 50))

	qty, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
}

func TestStockRepo_DecrementAndIncrement(t *testing.T) {
	repo := NewStockRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, 10, 5))

	left, err := repo.Decrement(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)

	_, err = repo.Decrement(ctx, 10, 3)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(3), stockErr.Requested)
	assert.Equal(t, int64(2), stockErr.Available)

	require.NoError(t, repo.Increment(ctx, 10, 3))
	qty, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
}

func TestStockRepo_InvalidAndMissing(t *testing.T) {
	repo := NewStockRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Decrement(ctx, 10, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, repo.Increment(ctx, 10, -1), domain.ErrValidation)

	_, err = repo.Decrement(ctx, 99, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Increment(ctx, 99, 1), domain.ErrNotFound)
	_, err = repo.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockRepo_LastUnitGoesToOneBuyer(t *testing.T) {
	repo := NewStockRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, 10, 1))

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Decrement(ctx, 10, 1)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, buyers-1, lost)

	qty, err := repo.Get(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, qty)
}
