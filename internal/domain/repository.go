package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Directory is the read side of the registration directory consumed by the
// ingestion pipeline.
type Directory interface {
	IdentityForCode(ctx context.Context, code string) (string, bool, error)
	DisplayName(ctx context.Context, identity string) (string, bool, error)
	Snapshot(ctx context.Context) (DirectorySnapshot, error)
}

// Registrar is the write side of the registration directory, owned by the
// registration flow.
type Registrar interface {
	Directory
	// Register returns the existing registration for identity
	// (case-insensitive) or stores newCode when none exists. The returned
	// entry carries the identity as stored. created reports which happened.
	Register(ctx context.Context, identity, newCode string) (entry RegistrationEntry, created bool, err error)
	SetDisplayName(ctx context.Context, identity, displayName string) error
	DisplayNames(ctx context.Context) ([]DisplayNameEntry, error)
}

// Ledger is the append-only donation history.
type Ledger interface {
	Append(ctx context.Context, record DonationRecord) (DonationRecord, error)
	Query(ctx context.Context, filter LedgerFilter) ([]DonationRecord, error)
}

// Leaderboard maintains per-identity running totals.
type Leaderboard interface {
	RecordDonation(ctx context.Context, identity string, amount decimal.Decimal, ts time.Time) error
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
}

// Store bundles the capabilities a storage backend provides.
type Store interface {
	Registrar
	Ledger
	Leaderboard
	Close() error
}
