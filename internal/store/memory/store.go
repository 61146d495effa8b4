// Package memory provides an in-process storage backend. It is used in
// development, in tests, and as the reference behaviour for the SQL backends.
package memory

import (
	"donationhub/internal/domain"
	"donationhub/internal/ids"
)

// Store combines the in-memory directory, ledger and leaderboard.
type Store struct {
	*Directory
	*Ledger
	*Leaderboard
}

// New builds an empty store keeping at most retention records per platform.
func New(gen ids.Generator, retention int) *Store {
	return &Store{
		Directory:   NewDirectory(),
		Ledger:      NewLedger(gen, retention),
		Leaderboard: NewLeaderboard(),
	}
}

func (s *Store) Close() error { return nil }

var _ domain.Store = (*Store)(nil)
