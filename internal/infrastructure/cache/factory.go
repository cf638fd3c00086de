package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// ClaimStoreFactory creates claim stores based on configuration
type ClaimStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ClaimStoreFactoryOption is a functional option for configuring the factory
type ClaimStoreFactoryOption func(*ClaimStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ClaimStoreFactoryOption {
	return func(f *ClaimStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) ClaimStoreFactoryOption {
	return func(f *ClaimStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewClaimStoreFactory creates a new factory
func NewClaimStoreFactory(cfg config.RedisConfig, opts ...ClaimStoreFactoryOption) *ClaimStoreFactory {
	f := &ClaimStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable,
// otherwise the in-memory store (if fallback is allowed)
func (f *ClaimStoreFactory) CreateStore() (shared.ClaimStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory reminder claim store")
		return NewInMemoryClaimStore(), nil
	}

	store, err := NewRedisClaimStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using redis reminder claim store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for reminder claims but unavailable: %w", err)
	}

	f.logger.Warn("redis unavailable, falling back to in-memory reminder claim store; "+
		"other instances will not see these claims",
		zap.Error(err),
	)
	return NewInMemoryClaimStore(), nil
}
