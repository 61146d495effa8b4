package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/infra"
	"donationhub/internal/sqlinline"
)

// Store composes the PostgreSQL repositories into a domain.Store.
type Store struct {
	*DirectoryRepositoryPG
	*DonationRepositoryPG
	*LeaderboardRepositoryPG

	pool *pgxpool.Pool
}

// NewStore wires the repositories over sql. pool may be nil in tests; when set
// it is closed by Close.
func NewStore(sql infra.SQLExecutor, pool *pgxpool.Pool, gen ids.Generator, retention int) *Store {
	return &Store{
		DirectoryRepositoryPG:   NewDirectoryRepository(sql),
		DonationRepositoryPG:    NewDonationRepository(sql, gen, retention),
		LeaderboardRepositoryPG: NewLeaderboardRepository(sql),
		pool:                    pool,
	}
}

// EnsureSchema creates the tables the store needs when they are missing.
func EnsureSchema(ctx context.Context, sql infra.SQLExecutor) error {
	if _, err := sql.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

var _ domain.Store = (*Store)(nil)
