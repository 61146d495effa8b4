package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
	"donationhub/internal/infra"
	"donationhub/internal/sqlinline"
)

// LeaderboardRepositoryPG implements domain.Leaderboard with a single upsert
// per donation, so concurrent increments never lose updates.
type LeaderboardRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewLeaderboardRepository creates a new leaderboard repo.
func NewLeaderboardRepository(sql infra.SQLExecutor) *LeaderboardRepositoryPG {
	return &LeaderboardRepositoryPG{sql: sql}
}

func (r *LeaderboardRepositoryPG) RecordDonation(ctx context.Context, identity string, amount decimal.Decimal, ts time.Time) error {
	if identity == "" {
		return nil
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertLeaderboard, identity, amount.String(), ts); err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}

func (r *LeaderboardRepositoryPG) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QTopLeaderboard, n)
	if err != nil {
		return nil, fmt.Errorf("top leaderboard: %w", err)
	}
	defer rows.Close()

	items := []domain.LeaderboardEntry{}
	for rows.Next() {
		var (
			e     domain.LeaderboardEntry
			total string
		)
		if err := rows.Scan(&e.Identity, &total, &e.DonationCount, &e.LastDonationAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		if e.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse leaderboard total %q: %w", total, err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top leaderboard: %w", err)
	}
	return items, nil
}
