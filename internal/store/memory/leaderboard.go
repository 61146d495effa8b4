package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
)

// Leaderboard aggregates totals under a single lock, so every increment is
// one read-modify-write.
type Leaderboard struct {
	mu      sync.Mutex
	entries map[string]*domain.LeaderboardEntry
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{entries: make(map[string]*domain.LeaderboardEntry)}
}

func (b *Leaderboard) RecordDonation(_ context.Context, identity string, amount decimal.Decimal, ts time.Time) error {
	if identity == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[identity]
	if !ok {
		e = &domain.LeaderboardEntry{Identity: identity}
		b.entries[identity] = e
	}
	e.Apply(amount, ts)
	return nil
}

func (b *Leaderboard) Top(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	b.mu.Lock()
	out := make([]domain.LeaderboardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	b.mu.Unlock()

	domain.SortLeaderboard(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Entry returns the aggregate for identity, if any.
func (b *Leaderboard) Entry(identity string) (domain.LeaderboardEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[identity]
	if !ok {
		return domain.LeaderboardEntry{}, false
	}
	return *e, true
}
