package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LeaderboardEntry is the running aggregate for one identity.
type LeaderboardEntry struct {
	Identity       string
	TotalAmount    decimal.Decimal
	DonationCount  int64
	LastDonationAt time.Time
}

// Apply folds one donation into the entry. LastDonationAt never moves
// backwards so out-of-order deliveries keep the newest marker.
func (e *LeaderboardEntry) Apply(amount decimal.Decimal, ts time.Time) {
	e.TotalAmount = e.TotalAmount.Add(amount)
	e.DonationCount++
	if ts.After(e.LastDonationAt) {
		e.LastDonationAt = ts
	}
}

// DefaultLeaderboardLimit is used when the caller does not pass a limit.
const DefaultLeaderboardLimit = 10

// RanksBefore orders entries by total descending, then identity ascending.
func RanksBefore(a, b LeaderboardEntry) bool {
	if c := a.TotalAmount.Cmp(b.TotalAmount); c != 0 {
		return c > 0
	}
	return a.Identity < b.Identity
}

// SortLeaderboard orders entries in place using RanksBefore.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return RanksBefore(entries[i], entries[j]) })
}
