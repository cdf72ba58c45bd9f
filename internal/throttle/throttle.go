// Package throttle provides the cache-backed primitives that collapse
// bursts of per-document change events into a single indexing job.
//
// Two interchangeable strategies exist. The flag throttle is the one wired
// in: Redis SET NX EX is a single atomic operation, so the first caller in
// a cooldown window wins and no lock wrapping is needed. The counter
// debounce is the alternative for caches without an atomic add-if-absent;
// it lets the *last* scheduled job in a burst do the work instead.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "doc-indexer-throttle-"

// Throttle is the flag-based strategy: at most one successful Acquire per
// key per cooldown window. The flag is released only by TTL expiry, never
// explicitly.
type Throttle struct {
	client *redis.Client
}

func New(redisURL string) (*Throttle, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Throttle{client: client}, nil
}

func NewWithClient(client *redis.Client) *Throttle {
	return &Throttle{client: client}
}

func (t *Throttle) key(id string) string {
	return keyPrefix + id
}

// Acquire sets the presence flag for key with TTL = cooldown and reports
// whether this caller set it. Only the caller that sees true may schedule
// work; everyone else within the window is throttled.
func (t *Throttle) Acquire(ctx context.Context, key string, cooldown time.Duration) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(key), 1, cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("acquire throttle %s: %w", key, err)
	}
	return ok, nil
}

func (t *Throttle) Close() error {
	return t.client.Close()
}

const debounceKeyPrefix = "doc-indexer-debounce-"

// Debounce is the counter-based strategy: every trigger increments the
// key's counter and schedules a job, every job decrements it, and only the
// decrement that reaches zero or below proceeds. N triggers therefore
// produce N scheduled jobs but a single real push, performed by the last
// one.
type Debounce struct {
	client *redis.Client
}

func NewDebounceWithClient(client *redis.Client) *Debounce {
	return &Debounce{client: client}
}

func (d *Debounce) key(id string) string {
	return debounceKeyPrefix + id
}

// Touch records one trigger. The TTL keeps abandoned counters from living
// forever if a scheduled job is lost.
func (d *Debounce) Touch(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := d.key(key)
	n, err := d.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("incr debounce %s: %w", key, err)
	}
	if err := d.client.Expire(ctx, k, ttl).Err(); err != nil {
		return n, fmt.Errorf("expire debounce %s: %w", key, err)
	}
	return n, nil
}

// Consume decrements the counter and reports whether the calling job should
// proceed: true only when the result is zero or below, i.e. no later
// trigger is still pending.
func (d *Debounce) Consume(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Decr(ctx, d.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("decr debounce %s: %w", key, err)
	}
	return n <= 0, nil
}
