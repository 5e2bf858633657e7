package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Shared is the L2 contract consumed by the engine (spec.md §6): best-effort
// get/set with an explicit TTL. A timeout or backend error degrades to a
// miss on Get and is swallowed (fire-and-forget) on Set — the core always
// falls through to a build rather than blocking on L2 health.
type Shared interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// RedisShared is the production L2, backed by go-redis/v9, grounded on the
// Redis-backed tiered cache pattern used throughout the example pack
// (GrokNexus-QuantatomAI's grid_cache_tiered.go, SoySergo's location
// microservice, mohammed-shakir's h3-spatial-cache).
type RedisShared struct {
	client     *redis.Client
	opTimeout  time.Duration
	keyPrefix  string
}

// NewRedisShared wraps a *redis.Client. opTimeout bounds every Get/Set call
// (l2_op_timeout_ms in spec.md §6) regardless of the caller's own context
// deadline, so a slow Redis never stalls the render path past its budget.
func NewRedisShared(client *redis.Client, keyPrefix string, opTimeout time.Duration) *RedisShared {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisShared{client: client, opTimeout: opTimeout, keyPrefix: keyPrefix}
}

func (r *RedisShared) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisShared) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opTimeout)
	defer cancel()
	// Fire-and-forget per spec.md §4.1: errors are not surfaced to the
	// caller, only observable by whoever wires a logger around this call.
	_ = r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Null is an L2 that always misses on Get and discards Set. Used in tests
// and single-node deployments with no shared cache configured.
type Null struct{}

func (Null) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Null) Set(context.Context, string, []byte, time.Duration) {}
