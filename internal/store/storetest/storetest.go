// Package storetest is a behavioural suite every domain.Store backend runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donationhub/internal/domain"
)

// Opener returns a fresh, empty store keeping at most retention ledger
// records per platform.
type Opener func(t *testing.T, retention int) domain.Store

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Run exercises the full store contract against open.
func Run(t *testing.T, open Opener) {
	t.Run("RegisterReusesIdentityIgnoringCase", func(t *testing.T) { registerReuses(t, open(t, 0)) })
	t.Run("RegisterRejectsTakenCode", func(t *testing.T) { registerTakenCode(t, open(t, 0)) })
	t.Run("SnapshotKeepsInsertionOrder", func(t *testing.T) { snapshotOrder(t, open(t, 0)) })
	t.Run("DisplayNameLastWriteWins", func(t *testing.T) { displayNames(t, open(t, 0)) })
	t.Run("LedgerRetention", func(t *testing.T) { ledgerRetention(t, open(t, 3)) })
	t.Run("LedgerFilters", func(t *testing.T) { ledgerFilters(t, open(t, 0)) })
	t.Run("LeaderboardAggregates", func(t *testing.T) { leaderboardAggregates(t, open(t, 0)) })
	t.Run("LeaderboardConcurrentIncrements", func(t *testing.T) { leaderboardConcurrent(t, open(t, 0)) })
}

func registerReuses(t *testing.T, s domain.Store) {
	ctx := context.Background()
	entry, created, err := s.Register(ctx, "Moonzet16", "AB12CD")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RegistrationEntry{Code: "AB12CD", Identity: "Moonzet16"}, entry)

	entry, created, err = s.Register(ctx, "MOONZET16", "ZZ99YY")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.RegistrationEntry{Code: "AB12CD", Identity: "Moonzet16"}, entry, "reuse returns the stored identity")

	identity, ok, err := s.IdentityForCode(ctx, "AB12CD")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Moonzet16", identity)

	_, ok, err = s.IdentityForCode(ctx, "ZZ99YY")
	require.NoError(t, err)
	assert.False(t, ok)
}

func registerTakenCode(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, _, err := s.Register(ctx, "kiki", "QW34ER")
	require.NoError(t, err)
	_, _, err = s.Register(ctx, "budi", "QW34ER")
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)
}

func snapshotOrder(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i, identity := range []string{"charlie", "alpha", "bravo"} {
		_, _, err := s.Register(ctx, identity, fmt.Sprintf("CODE0%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, s.SetDisplayName(ctx, "bravo", "Bravo Six"))
	require.NoError(t, s.SetDisplayName(ctx, "alpha", "Alpha One"))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Registrations, 3)
	assert.Equal(t, "charlie", snap.Registrations[0].Identity)
	assert.Equal(t, "bravo", snap.Registrations[2].Identity)
	assert.Equal(t, []domain.DisplayNameEntry{
		{Identity: "bravo", DisplayName: "Bravo Six"},
		{Identity: "alpha", DisplayName: "Alpha One"},
	}, snap.DisplayNames)
}

func displayNames(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, ok, err := s.DisplayName(ctx, "kiki")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetDisplayName(ctx, "kiki", "Kiki"))
	require.NoError(t, s.SetDisplayName(ctx, "kiki", "KikiTheGreat"))

	name, ok, err := s.DisplayName(ctx, "kiki")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "KikiTheGreat", name)

	all, err := s.DisplayNames(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func ledgerRetention(t *testing.T, s domain.Store) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec, err := s.Append(ctx, domain.DonationRecord{
			Donor:     fmt.Sprintf("d%d", i),
			Amount:    decimal.NewFromInt(int64(1000 * (i + 1))),
			Platform:  domain.PlatformSaweria,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
	}
	_, err := s.Append(ctx, domain.DonationRecord{Donor: "bb", Amount: decimal.NewFromInt(1), Platform: domain.PlatformBagiBagi, Timestamp: base})
	require.NoError(t, err)

	got, err := s.Query(ctx, domain.LedgerFilter{Platform: domain.PlatformSaweria, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"d4", "d3", "d2"}, Donors(got))
	assert.Equal(t, "5000", got[0].Amount.String())

	got, err = s.Query(ctx, domain.LedgerFilter{Platform: domain.PlatformBagiBagi})
	require.NoError(t, err)
	assert.Equal(t, []string{"bb"}, Donors(got))
}

func ledgerFilters(t *testing.T, s domain.Store) {
	ctx := context.Background()
	seed := []domain.DonationRecord{
		{Donor: "a", MatchedIdentity: "Kiki", MatchMethod: domain.MatchIdentity, Platform: domain.PlatformBagiBagi, Timestamp: base},
		{Donor: "b", MatchedIdentity: "kiki", MatchMethod: domain.MatchCode, Platform: domain.PlatformSaweria, Timestamp: base.Add(time.Hour)},
		{Donor: "c", MatchedIdentity: "budi", MatchMethod: domain.MatchFallback, Platform: domain.PlatformSaweria, Timestamp: base.Add(2 * time.Hour)},
		{Donor: "d", MatchedIdentity: "KIKI", MatchMethod: domain.MatchExplicit, Platform: domain.PlatformSaweria, Timestamp: base.Add(3 * time.Hour)},
	}
	for _, r := range seed {
		r.Amount = decimal.NewFromInt(10)
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.Query(ctx, domain.LedgerFilter{Identity: "kiki"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, Donors(got))
	assert.Equal(t, domain.MatchExplicit, got[0].MatchMethod)
	assert.True(t, got[0].Timestamp.Equal(base.Add(3*time.Hour)))

	got, err = s.Query(ctx, domain.LedgerFilter{Identity: "kiki", Platform: domain.PlatformSaweria, Since: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, Donors(got))

	got, err = s.Query(ctx, domain.LedgerFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, Donors(got))

	got, err = s.Query(ctx, domain.LedgerFilter{Limit: 1, Unlimited: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, Donors(got))

	got, err = s.Query(ctx, domain.LedgerFilter{Identity: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func leaderboardAggregates(t *testing.T, s domain.Store) {
	ctx := context.Background()
	late := base.Add(24 * time.Hour)

	require.NoError(t, s.RecordDonation(ctx, "", decimal.NewFromInt(999999), late))
	require.NoError(t, s.RecordDonation(ctx, "a", decimal.RequireFromString("5.25"), late))
	require.NoError(t, s.RecordDonation(ctx, "a", decimal.RequireFromString("6.75"), base))
	require.NoError(t, s.RecordDonation(ctx, "c", decimal.NewFromInt(12), base))
	require.NoError(t, s.RecordDonation(ctx, "b", decimal.NewFromInt(12), base))
	require.NoError(t, s.RecordDonation(ctx, "z", decimal.NewFromInt(100), base))

	top, err := s.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "z", top[0].Identity)
	assert.Equal(t, "a", top[1].Identity)
	assert.Equal(t, "b", top[2].Identity)
	assert.True(t, top[1].TotalAmount.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, int64(2), top[1].DonationCount)
	assert.True(t, top[1].LastDonationAt.Equal(late))

	all, err := s.Top(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func leaderboardConcurrent(t *testing.T, s domain.Store) {
	ctx := context.Background()
	const workers, each = 20, 5

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				assert.NoError(t, s.RecordDonation(ctx, "moonzet16", decimal.NewFromInt(10), base))
			}
		}()
	}
	wg.Wait()

	top, err := s.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.True(t, top[0].TotalAmount.Equal(decimal.NewFromInt(workers*each*10)), "total %s", top[0].TotalAmount)
	assert.Equal(t, int64(workers*each), top[0].DonationCount)
}

// Donors lists the donor names of records in order.
func Donors(records []domain.DonationRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Donor
	}
	return out
}
