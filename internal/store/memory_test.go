package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*store.MemoryStore, *manualClock) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return store.NewMemoryStore(store.WithClock(clock.Now)), clock
}

func TestMemoryStore_GetAbsent(t *testing.T) {
	s, _ := newClockedStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_SetGetReportsRemainingTTL(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 3, 10*time.Minute))
	clock.Advance(4 * time.Minute)

	entry, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Count)
	assert.Equal(t, 6*time.Minute, entry.TTL)
}

func TestMemoryStore_ExpiresAtTTL(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
	clock.Advance(time.Minute)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, s.Len(), "expired record dropped on read")
}

func TestMemoryStore_IncrRestartsAfterExpiry(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := s.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	clock.Advance(2 * time.Minute)
	got, err := s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestMemoryStore_IncrRefreshesTTL(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	_, err := s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	_, err = s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)

	entry, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, time.Minute, entry.TTL)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	s, clock := newClockedStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "long", 1, time.Hour))
	clock.Advance(2 * time.Minute)

	removed, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s, _ := newClockedStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", 1, time.Minute), context.Canceled)
	_, err = s.Incr(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentIncrIsExact(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Incr(ctx, "hot", time.Minute)
		}()
	}
	wg.Wait()

	entry, err := s.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, 50, entry.Count)
}
