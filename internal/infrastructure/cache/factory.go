package cache

import (
	"fmt"

	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore creates the idempotency store for the ledger sync
// worker. When Redis is enabled it is required: falling back silently to an
// in-memory store in a multi-instance deployment could double-apply a
// rollback.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		logger.Warn("Redis disabled, using in-memory idempotency store. " +
			"Run a single sync worker instance or rollbacks may double-apply.")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	logger.Info("using Redis idempotency store")
	return store, nil
}
