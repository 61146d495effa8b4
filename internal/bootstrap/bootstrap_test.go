package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donationhub/internal/adapter/sqlite"
	"donationhub/internal/domain"
	"donationhub/internal/infra"
	"donationhub/internal/ingest"
	"donationhub/internal/store/memory"
)

func baseConfig() *infra.Config {
	return &infra.Config{
		StorageDriver:     infra.StorageMemory,
		LeaderboardDriver: infra.LeaderboardStore,
		LedgerRetention:   10,
		SnowflakeNode:     1,
		DedupeTTL:         time.Minute,
	}
}

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Store{}, b.Store)
	assert.IsType(t, &ingest.MemoryGuard{}, b.Guard)
	assert.Equal(t, b.Store, b.Leaderboard)
}

func TestOpenSQLitePersists(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig()
	cfg.StorageDriver = infra.StorageSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "donations.db")

	b, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, b.Store)
	require.NoError(t, b.Leaderboard.RecordDonation(ctx, "kiki", decimal.NewFromInt(5), time.Now()))
	require.NoError(t, b.Close())

	b, err = Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	top, err := b.Leaderboard.Top(ctx, domain.DefaultLeaderboardLimit)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "kiki", top[0].Identity)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.StorageDriver = "mongo"
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.SnowflakeNode = 5000
	_, err = Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
