// Package redisstore keeps short-lived per-player flags in Redis so several
// bot replicas agree on cooldowns and in-flight narrations.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Throttle enforces a cooldown between commands from the same player.
type Throttle struct {
	client   *redis.Client
	prefix   string
	cooldown time.Duration
}

func NewThrottle(client *redis.Client, prefix string, cooldown time.Duration) *Throttle {
	return &Throttle{client: client, prefix: prefix, cooldown: cooldown}
}

// Allow reports whether playerID may issue a command now, and starts the
// cooldown if so. A zero cooldown allows everything.
func (t *Throttle) Allow(ctx context.Context, playerID string) (bool, error) {
	if t.cooldown <= 0 {
		return true, nil
	}
	ok, err := t.client.SetNX(ctx, t.prefix+"cooldown:"+playerID, 1, t.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis throttle: %w", err)
	}
	return ok, nil
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// ReleaseFunc gives a held flag back.
type ReleaseFunc func(ctx context.Context) error

// InFlight marks a player as having a narration in progress.
type InFlight struct {
	client *redis.Client
	prefix string
}

func NewInFlight(client *redis.Client, prefix string) *InFlight {
	return &InFlight{client: client, prefix: prefix}
}

// Acquire claims the player's flag without waiting. ok is false when another
// narration for the player already holds it. ttl bounds how long a crashed
// holder can block the player.
func (f *InFlight) Acquire(ctx context.Context, playerID string, ttl time.Duration) (release ReleaseFunc, ok bool, err error) {
	key := f.prefix + "inflight:" + playerID
	token := strconv.FormatInt(time.Now().UnixNano(), 10)

	ok, err = f.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis in-flight: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return f.client.Eval(ctx, releaseScript, []string{key}, token).Err()
	}, true, nil
}
