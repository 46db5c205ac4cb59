package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OrderLockCloser is an order lock that owns resources
type OrderLockCloser interface {
	integration.OrderLock
	io.Closer
}

// OrderLockFactory creates order locks based on configuration
type OrderLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// OrderLockFactoryOption is a functional option for configuring the factory
type OrderLockFactoryOption func(*OrderLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) OrderLockFactoryOption {
	return func(f *OrderLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to an
// in-process lock. Default is true.
func WithInMemoryFallback(allow bool) OrderLockFactoryOption {
	return func(f *OrderLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewOrderLockFactory creates a new factory
func NewOrderLockFactory(cfg config.RedisConfig, opts ...OrderLockFactoryOption) *OrderLockFactory {
	f := &OrderLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLock returns a Redis lock when Redis is enabled and reachable,
// otherwise an in-memory lock
func (f *OrderLockFactory) CreateLock(ctx context.Context) (OrderLockCloser, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory order lock")
		return NewInMemoryOrderLock(), nil
	}

	lock, err := NewRedisOrderLock(ctx, f.redisConfig.Addr(), f.redisConfig.Password, f.redisConfig.DB)
	if err == nil {
		f.logger.Info("Using Redis order lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for order lock but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory order lock. "+
		"Runners in other processes are not guarded.",
		zap.Error(err),
	)
	return NewInMemoryOrderLock(), nil
}
