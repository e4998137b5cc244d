package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"taskr/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

var ErrWaitTimeout = errors.New("rate limit wait timeout")

// 令牌桶脚本：原子地补发令牌并尝试扣减，返回 {allowed, wait_ms, tokens}。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// Limiter 是基于 Redis 的令牌桶限流器。
//
// 每个 key（例如按客户端 IP）维护一个独立的桶，多实例部署时
// 状态共享在 Redis 里。
type Limiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64 // 令牌补发速率 (token/s)
	burst  float64 // 桶容量
	logger *slog.Logger
	script *redis.Script
}

// New 创建限流器。prefix 为空时使用默认前缀。
func New(rdb *redis.Client, logger *slog.Logger, prefix string, rate, burst float64) *Limiter {
	if prefix == "" {
		prefix = "taskr:ratelimit:"
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 非阻塞地尝试取一个令牌。
//
// 返回值:
//
//	bool: 是否放行
//	time.Duration: 拒绝时建议的重试间隔
//	error: Redis 访问失败
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true, 0, nil
	}

	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + key}, l.rate, l.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	waitMs := toInt64(values[1])
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

// Acquire 阻塞直到取得令牌或 ctx 结束。
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return nil
	}

	start := time.Now()
	for {
		allowed, wait, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			metrics.RateLimitWaitDuration.Observe(time.Since(start).Seconds())
			return nil
		}

		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			metrics.RateLimitWaitDuration.Observe(time.Since(start).Seconds())
			metrics.RateLimitTimeoutTotal.Inc()
			return ErrWaitTimeout
		case <-timer.C:
		}
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
