package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"withgames/internal/ports/output"
)

var _ output.Lease = (*RedisLease)(nil)

// DefaultKey is the Redis key shared by every scheduler instance.
const DefaultKey = "withgames:scheduler:leader"

// Extends the TTL only while the key still holds our token.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLease is a single-holder lease stored under one Redis key.
type RedisLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLease(client *redis.Client, key string, ttl time.Duration, log *zap.Logger) *RedisLease {
	if key == "" {
		key = DefaultKey
	}
	return &RedisLease{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
		log:    log,
	}
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		l.log.Info("scheduler lease acquired", zap.String("key", l.key), zap.String("token", l.token))
		return true, nil
	}

	renewed, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease %s: %w", l.key, err)
	}
	return renewed == 1, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if n == 1 {
		l.log.Info("scheduler lease released", zap.String("key", l.key))
	}
	return nil
}
