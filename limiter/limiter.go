package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy is a rate-limiting algorithm over a shared Redis instance, so
// the limit holds across server instances.
type Strategy interface {
	Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error)
}

// Manager guards visitor room creation against bursts.
type Manager struct {
	rdb      *redis.Client
	strategy Strategy
}

func NewManager(rdb *redis.Client, strategy Strategy) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
	}
}

func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, key, limit, window)
}

// FixedWindowStrategy counts hits per window key.
type FixedWindowStrategy struct{}

func (s *FixedWindowStrategy) Allow(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	// Lua keeps INCR and EXPIRE atomic.
	const script = `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call("INCR", key)
		if current == 1 then
			redis.call("EXPIRE", key, window)
		end
		if current > limit then
			return 0
		end
		return 1
	`
	result, err := rdb.Eval(ctx, script, []string{key}, limit, int(window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
