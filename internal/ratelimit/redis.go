package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the throttle with a shared counter store so multiple instances
// see the same windows. INCR creates the key on the first attempt, which then
// sets the expiry once; later attempts do not slide the window.
type Redis struct {
	client  *redis.Client
	ceiling int
	window  time.Duration
	prefix  string
}

func NewRedis(client *redis.Client, ceiling int, window time.Duration) *Redis {
	return &Redis{client: client, ceiling: ceiling, window: window, prefix: "throttle:"}
}

func (r *Redis) Allow(ctx context.Context, origin string) (Decision, error) {
	key := r.prefix + origin

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return Decision{}, err
		}
	}
	if int(count) > r.ceiling {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			return Decision{}, err
		}
		if ttl < 0 {
			ttl = r.window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: r.ceiling - int(count)}, nil
}

func (r *Redis) Clear(ctx context.Context, origin string) error {
	return r.client.Del(ctx, r.prefix+origin).Err()
}
