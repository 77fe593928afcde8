package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter is a thin wrapper around github.com/vnmchuo/ratelimiter keyed by
// client. A nil *Limiter allows everything.
type Limiter struct {
	store extratelimit.Limiter
}

// NewLimiter allows rpm requests per client per minute.
func NewLimiter(rdb *redis.Client, rpm int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(rpm)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

func key(client string) string {
	return fmt.Sprintf("ratelimit:client:%s", client)
}

// Allow consumes one request from the client's budget.
func (l *Limiter) Allow(ctx context.Context, client string) (bool, error) {
	if l == nil {
		return true, nil
	}
	res, err := l.store.Allow(ctx, key(client))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
