package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitPacesSameDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://example.com/a"))

	// 10 QPS with burst 1 means the second token arrives ~100ms later.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterDomainsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterDisabledWhenQPSZero(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com/"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterRespectsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 0.1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://slow.example/"))
	err := l.Wait(ctx, "https://slow.example/")
	require.Error(t, err)
}

func TestLimiterUnparseableURLSharesBucket(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 5, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "://not-a-url"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "also not a url"))
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
