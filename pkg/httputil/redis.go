package httputil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key holding the shared admission instant.
const DefaultRedisKey = "consecrates:window"

// admitScript performs the check-and-update inside Redis so it is atomic
// across every process sharing the key. Time comes from the Redis server,
// which keeps clients with skewed clocks in the same window.
//
// KEYS[1] = window key, ARGV[1] = interval in microseconds.
var admitScript = redis.NewScript(`
if redis.replicate_commands then redis.replicate_commands() end
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000000 + tonumber(t[2])
local interval = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
if last > 0 and now - last < interval then
  return 0
end
local stamp = t[1] .. string.format('%06d', tonumber(t[2]))
redis.call('SET', KEYS[1], stamp, 'PX', math.floor(interval / 1000) + 1000)
return 1
`)

// RedisLimiter is an [Admitter] whose last-admission instant lives in Redis.
//
// Several processes crawling under the same User-Agent can share one
// RedisLimiter key so the registry sees a single client honoring the minimum
// interval. Semantics match [Limiter]: one admission per interval, first
// request immediately admitted, no burst.
type RedisLimiter struct {
	rdb      redis.Scripter
	key      string
	interval time.Duration
}

// NewRedisLimiter creates a limiter backed by rdb under key.
// An empty key selects [DefaultRedisKey].
func NewRedisLimiter(rdb redis.Scripter, key string, interval time.Duration) *RedisLimiter {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLimiter{rdb: rdb, key: key, interval: interval}
}

// Admit implements [Admitter]. Redis failures are returned to the caller;
// the request is not admitted in that case.
func (l *RedisLimiter) Admit(ctx context.Context) (bool, error) {
	if l.interval <= 0 {
		return true, nil
	}
	n, err := admitScript.Run(ctx, l.rdb, []string{l.key}, l.interval.Microseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis admit %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Key returns the Redis key holding the window.
func (l *RedisLimiter) Key() string { return l.key }

// Interval returns the configured minimum interval.
func (l *RedisLimiter) Interval() time.Duration { return l.interval }

var _ Admitter = (*RedisLimiter)(nil)
