package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelharbor/imageconvbackend/models"
)

// reserveScript atomically increments the day counter, applies the TTL
// on first use, and rolls back when the ceiling is exceeded. returning
// {allowed, used} in one round trip keeps two concurrent callers from
// both observing the last free slot.
var reserveScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
if count > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return {0, count - 1}
end
return {1, count}
`)

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > 0 then
  return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisLedger is the production quota ledger, backed by INCR-with-TTL
// day counters.
type RedisLedger struct {
	client *redis.Client
	limits Limits
	now    func() time.Time
}

func NewRedisLedger(client *redis.Client, limits Limits) *RedisLedger {
	return &RedisLedger{client: client, limits: limits, now: time.Now}
}

func (l *RedisLedger) CheckAndReserve(ctx context.Context, userID uint, role models.Role) (Decision, error) {
	ceiling := l.limits.Ceiling(role)
	now := l.now()
	key := dayKey(userID, now)

	res, err := reserveScript.Run(ctx, l.client, []string{key}, ceiling, secondsUntilMidnight(now)).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("quota reservation failed for user %d: %w", userID, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("quota reservation returned unexpected result %v", res)
	}

	decision := Decision{
		Allowed: res[0] == 1,
		Used:    int(res[1]),
		Ceiling: ceiling,
	}
	if !decision.Allowed {
		decision.Reason = deniedReason(decision.Used, ceiling)
	}
	return decision, nil
}

func (l *RedisLedger) Release(ctx context.Context, userID uint) error {
	key := dayKey(userID, l.now())
	if err := releaseScript.Run(ctx, l.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("quota release failed for user %d: %w", userID, err)
	}
	return nil
}

func (l *RedisLedger) UsageToday(ctx context.Context, userID uint) (int, error) {
	key := dayKey(userID, l.now())
	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota read failed for user %d: %w", userID, err)
	}
	return count, nil
}

func (l *RedisLedger) Reset(ctx context.Context, userID uint) error {
	key := dayKey(userID, l.now())
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("quota reset failed for user %d: %w", userID, err)
	}
	return nil
}
