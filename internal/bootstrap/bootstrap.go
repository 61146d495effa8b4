// Package bootstrap opens the storage backends selected by configuration.
// The API, the worker and the CLI tools share it so they always agree on
// where data lives.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"donationhub/internal/adapter/redisboard"
	"donationhub/internal/adapter/repo"
	"donationhub/internal/adapter/sqlite"
	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/infra"
	"donationhub/internal/ingest"
	"donationhub/internal/store/memory"
)

// Backends is everything the ingestion pipeline and read API persist to.
type Backends struct {
	Store       domain.Store
	Leaderboard domain.Leaderboard
	Guard       ingest.DeliveryGuard

	redis *redis.Client
}

// OpenStore opens the directory and ledger backend named by
// cfg.StorageDriver, applying its schema.
func OpenStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.Store, error) {
	gen, err := ids.NewSnowflake(cfg.SnowflakeNode)
	if err != nil {
		return nil, err
	}

	switch cfg.StorageDriver {
	case infra.StorageMemory:
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.New(gen, cfg.LedgerRetention), nil
	case infra.StorageSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, gen, cfg.LedgerRetention)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return s, nil
	case infra.StoragePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		runner := infra.NewSQLRunner(pool, logger)
		if err := repo.EnsureSchema(ctx, runner); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("postgres store ready")
		return repo.NewStore(runner, pool, gen, cfg.LedgerRetention), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Open opens the store plus the leaderboard and delivery guard. With
// LEADERBOARD_DRIVER=redis both move to Redis; otherwise the store keeps
// the leaderboard and dedupe is process-local.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Backends, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	b := &Backends{
		Store:       store,
		Leaderboard: store,
		Guard:       ingest.NewMemoryGuard(cfg.DedupeTTL),
	}
	if cfg.LeaderboardDriver != infra.LeaderboardRedis {
		return b, nil
	}

	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	b.redis = client
	b.Leaderboard = redisboard.New(client)
	b.Guard = redisboard.NewDeliveryGuard(client, cfg.DedupeTTL)
	logger.Info().Msg("redis leaderboard ready")
	return b, nil
}

// Close releases every backend connection.
func (b *Backends) Close() error {
	var firstErr error
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if err := b.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
