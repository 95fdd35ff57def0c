package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const RateLimitKeyPrefix = "rl"

// 动作名，限流键的一部分
const (
	ActionMessage = "message"
	ActionTyping  = "typing"
	ActionJoin    = "join"
)

// Rule 固定窗口：窗口内最多 Max 次
type Rule struct {
	Window time.Duration
	Max    int64
}

// DefaultRules 消息与打字指示共用同一档位
var DefaultRules = map[string]Rule{
	ActionMessage: {Window: 10 * time.Second, Max: 10},
	ActionTyping:  {Window: 10 * time.Second, Max: 10},
	ActionJoin:    {Window: time.Minute, Max: 5},
}

// RateLimiter 计数放 Redis，多进程共享；原子性完全交给 INCR，本地不持锁
type RateLimiter struct {
	RDB   *redis.Client
	Rules map[string]Rule
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{RDB: Client, Rules: DefaultRules}
}

func (r *RateLimiter) key(userID uint64, action string) string {
	return fmt.Sprintf("%s:%s:%d", RateLimitKeyPrefix, action, userID)
}

// Allow 窗口锚定在第一次调用：计数值为 1 时才设置 TTL，后续 INCR 不重置。
// 超限返回 (false, 剩余等待时间)。Redis 不可用时放行（fail-open），可用性优先于严格限流。
func (r *RateLimiter) Allow(ctx context.Context, userID uint64, action string) (bool, time.Duration, error) {
	rule, ok := r.Rules[action]
	if !ok {
		return true, 0, nil
	}

	k := r.key(userID, action)
	n, err := r.RDB.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, err
	}
	if n == 1 {
		if err := r.RDB.Expire(ctx, k, rule.Window).Err(); err != nil {
			return true, 0, err
		}
	}
	if n > rule.Max {
		retry := rule.Window
		if ttl, err := r.RDB.TTL(ctx, k).Result(); err == nil && ttl > 0 {
			retry = ttl
		}
		return false, retry, nil
	}
	return true, 0, nil
}
