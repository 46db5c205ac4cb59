package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKeyPrefix namespaces order lock keys in Redis
const DefaultLockKeyPrefix = "storefront-sync:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that another runner re-acquired is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOrderLock implements integration.OrderLock with SET NX + TTL.
// It is shared by every runner instance pointed at the same Redis.
type RedisOrderLock struct {
	client    *redis.Client
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisOrderLock connects to Redis and verifies the connection
func NewRedisOrderLock(ctx context.Context, addr, password string, db int) (*RedisOrderLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisOrderLockWithClient(client, DefaultLockKeyPrefix), nil
}

// NewRedisOrderLockWithClient creates a lock over an existing client
func NewRedisOrderLockWithClient(client *redis.Client, keyPrefix string) *RedisOrderLock {
	if keyPrefix == "" {
		keyPrefix = DefaultLockKeyPrefix
	}
	return &RedisOrderLock{
		client:    client,
		keyPrefix: keyPrefix,
		tokens:    make(map[string]string),
	}
}

// Acquire returns true when the key was free and is now held for ttl
func (l *RedisOrderLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees a key acquired by this instance. Unknown keys are a no-op.
func (l *RedisOrderLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisOrderLock) Close() error {
	return l.client.Close()
}

var _ integration.OrderLock = (*RedisOrderLock)(nil)
