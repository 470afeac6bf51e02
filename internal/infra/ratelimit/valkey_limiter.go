package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyLimiter is a fixed-window counter shared by every instance.
type ValkeyLimiter struct {
	client valkey.Client
	prefix string
	policy Policy
	now    func() time.Time
}

// NewValkeyLimiter constructs a limiter on an existing client.
func NewValkeyLimiter(client valkey.Client, prefix string, p Policy) *ValkeyLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &ValkeyLimiter{client: client, prefix: prefix, policy: p, now: time.Now}
}

// Allow increments the counter for the current window.
func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key)
	count, err := l.client.Do(ctx, l.client.B().Incr().Key(windowKey).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	if count == 1 {
		seconds := int64(l.policy.Window / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		if err := l.client.Do(ctx, l.client.B().Expire().Key(windowKey).Seconds(seconds).Build()).Error(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.policy.Max), nil
}

func (l *ValkeyLimiter) windowKey(key string) string {
	window := l.now().UnixNano() / int64(l.policy.Window)
	return l.prefix + ":" + key + ":" + strconv.FormatInt(window, 10)
}

var _ Limiter = (*ValkeyLimiter)(nil)
