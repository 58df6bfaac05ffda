package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"food-order-service/internal/domain"
	"food-order-service/internal/mocks"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type slowCatalog struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowCatalog) GetProduct(ctx context.Context, id uint64) (*domain.ProductSnapshot, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &domain.ProductSnapshot{ID: id, Name: "Idli", Price: 2500, IsActive: true, IsAvailable: true}, nil
}

func TestCachedCatalog_SharesConcurrentMisses(t *testing.T) {
	upstream := &slowCatalog{release: make(chan struct{})}
	c := NewCachedCatalog(upstream, nil, time.Minute, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*domain.ProductSnapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.GetProduct(context.Background(), 9)
			if err == nil {
				results[i] = p
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	assert.Less(t, upstream.calls.Load(), int32(callers))
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "Idli", p.Name)
	}

	results[0].Name = "changed"
	assert.Equal(t, "Idli", results[1].Name)
}

func TestCachedCatalog_CancelledCallerDoesNotFailOthers(t *testing.T) {
	upstream := &slowCatalog{release: make(chan struct{})}
	c := NewCachedCatalog(upstream, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetProduct(ctx, 9)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		p   *domain.ProductSnapshot
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := c.GetProduct(context.Background(), 9)
		second <- result{p, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(upstream.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Idli", got.p.Name)
}

func TestCachedCatalog_PassesNotFoundThrough(t *testing.T) {
	upstream := new(mocks.MockCatalog)
	upstream.On("GetProduct", mock.Anything, uint64(4)).
		Return(nil, &domain.NotFoundError{Resource: "product", ID: "4"})
	c := NewCachedCatalog(upstream, nil, time.Minute, nil)

	_, err := c.GetProduct(context.Background(), 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCachedCatalog_UnreachableRedisFallsBack(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	upstream := new(mocks.MockCatalog)
	upstream.On("GetProduct", mock.Anything, uint64(1)).
		Return(&domain.ProductSnapshot{ID: 1, Name: "Vada", Price: 1800}, nil)
	c := NewCachedCatalog(upstream, rdb, time.Minute, nil)

	p, err := c.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Vada", p.Name)

	require.NoError(t, c.Warmup(context.Background(), []uint64{1}))
	upstream.AssertNumberOfCalls(t, "GetProduct", 2)
}

func TestCachedCatalog_WarmupWithoutRedis(t *testing.T) {
	upstream := new(mocks.MockCatalog)
	c := NewCachedCatalog(upstream, nil, time.Minute, nil)

	require.NoError(t, c.Warmup(context.Background(), []uint64{1, 2}))
	upstream.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}
