package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(Policy{Max: 10, Window: 15 * time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow(context.Background(), "10.0.0.1")
	require.False(t, ok)

	ok, _ = l.Allow(context.Background(), "10.0.0.2")
	require.True(t, ok, "keys are independent")

	now = now.Add(91 * time.Second)
	ok, _ = l.Allow(context.Background(), "10.0.0.1")
	require.True(t, ok, "one token refills every 90s")
	ok, _ = l.Allow(context.Background(), "10.0.0.1")
	require.False(t, ok)
}

func TestValkeyLimiterWindowKey(t *testing.T) {
	l := NewValkeyLimiter(nil, "", Policy{Max: 10, Window: 15 * time.Minute})
	l.now = func() time.Time { return time.Unix(1800, 0) }
	require.Equal(t, "ratelimit:1.2.3.4:2", l.windowKey("1.2.3.4"))

	l.now = func() time.Time { return time.Unix(2699, 0) }
	require.Equal(t, "ratelimit:1.2.3.4:2", l.windowKey("1.2.3.4"))

	l.now = func() time.Time { return time.Unix(2700, 0) }
	require.Equal(t, "ratelimit:1.2.3.4:3", l.windowKey("1.2.3.4"))
}
