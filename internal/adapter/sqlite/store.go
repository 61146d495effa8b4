// Package sqlite is the single-file storage backend. Writes are serialized by
// the one-connection pool the store is opened with.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/infra"
)

// Store implements domain.Store on SQLite.
type Store struct {
	db        *sql.DB
	gen       ids.Generator
	retention int
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, gen ids.Generator, retention int) (*Store, error) {
	db, err := infra.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, gen, retention)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database.
func New(ctx context.Context, db *sql.DB, gen ids.Generator, retention int) (*Store, error) {
	if retention <= 0 {
		retention = domain.DefaultLedgerRetention
	}
	s := &Store{db: db, gen: gen, retention: retention}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS registrations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			identity TEXT NOT NULL UNIQUE COLLATE NOCASE,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS display_names (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			identity TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS donations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			external_id TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL,
			donor TEXT NOT NULL,
			amount TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			matched_identity TEXT NOT NULL DEFAULT '',
			match_method TEXT NOT NULL,
			received_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS leaderboard (
			identity TEXT PRIMARY KEY,
			total TEXT NOT NULL,
			donations INTEGER NOT NULL,
			last_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_donations_platform ON donations(platform, seq);
		CREATE INDEX IF NOT EXISTS idx_donations_received ON donations(received_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) IdentityForCode(ctx context.Context, code string) (string, bool, error) {
	var identity string
	err := s.db.QueryRowContext(ctx, `SELECT identity FROM registrations WHERE code = ?`, code).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select identity by code: %w", err)
	}
	return identity, true, nil
}

func (s *Store) DisplayName(ctx context.Context, identity string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT display_name FROM display_names WHERE identity = ?`, identity).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select display name: %w", err)
	}
	return name, true, nil
}

func (s *Store) Snapshot(ctx context.Context) (domain.DirectorySnapshot, error) {
	var snap domain.DirectorySnapshot

	rows, err := s.db.QueryContext(ctx, `SELECT code, identity FROM registrations ORDER BY seq`)
	if err != nil {
		return snap, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.RegistrationEntry
		if err := rows.Scan(&e.Code, &e.Identity); err != nil {
			return snap, fmt.Errorf("scan registration: %w", err)
		}
		snap.Registrations = append(snap.Registrations, e)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("list registrations: %w", err)
	}

	snap.DisplayNames, err = s.DisplayNames(ctx)
	return snap, err
}

// Register relies on the NOCASE unique index on identity to reuse an
// existing registration.
func (s *Store) Register(ctx context.Context, identity, newCode string) (domain.RegistrationEntry, bool, error) {
	var existing domain.RegistrationEntry
	err := s.db.QueryRowContext(ctx, `SELECT code, identity FROM registrations WHERE identity = ? COLLATE NOCASE`, identity).
		Scan(&existing.Code, &existing.Identity)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.RegistrationEntry{}, false, fmt.Errorf("select code by identity: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registrations (code, identity, created_at) VALUES (?, ?, ?)`,
		newCode, identity, time.Now().UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: registrations.code") {
			return domain.RegistrationEntry{}, false, domain.ErrCodeExhausted
		}
		return domain.RegistrationEntry{}, false, fmt.Errorf("insert registration: %w", err)
	}
	return domain.RegistrationEntry{Code: newCode, Identity: identity}, true, nil
}

func (s *Store) SetDisplayName(ctx context.Context, identity, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO display_names (identity, display_name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at`,
		identity, displayName, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert display name: %w", err)
	}
	return nil
}

func (s *Store) DisplayNames(ctx context.Context) ([]domain.DisplayNameEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity, display_name FROM display_names ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list display names: %w", err)
	}
	defer rows.Close()

	var items []domain.DisplayNameEntry
	for rows.Next() {
		var e domain.DisplayNameEntry
		if err := rows.Scan(&e.Identity, &e.DisplayName); err != nil {
			return nil, fmt.Errorf("scan display name: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Append inserts the record and evicts the platform's oldest rows beyond the
// retention cap in the same transaction.
func (s *Store) Append(ctx context.Context, record domain.DonationRecord) (domain.DonationRecord, error) {
	record.ID = s.gen.NextID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.DonationRecord{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO donations (id, external_id, platform, donor, amount, message, matched_identity, match_method, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ExternalID, string(record.Platform), record.Donor, record.Amount.String(),
		record.Message, record.MatchedIdentity, string(record.MatchMethod), record.Timestamp.UnixNano())
	if err != nil {
		return domain.DonationRecord{}, fmt.Errorf("insert donation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM donations
		WHERE platform = ? AND seq NOT IN (
			SELECT seq FROM donations WHERE platform = ? ORDER BY seq DESC LIMIT ?
		)`, string(record.Platform), string(record.Platform), s.retention)
	if err != nil {
		return domain.DonationRecord{}, fmt.Errorf("trim donations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.DonationRecord{}, fmt.Errorf("commit append: %w", err)
	}
	return record, nil
}

func (s *Store) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.DonationRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, string(filter.Platform))
	}
	if filter.Identity != "" {
		where = append(where, "matched_identity = ? COLLATE NOCASE")
		args = append(args, filter.Identity)
	}
	if !filter.Since.IsZero() {
		where = append(where, "received_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT id, external_id, platform, donor, amount, message, matched_identity, match_method, received_at FROM donations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at DESC, seq DESC LIMIT ?"
	limit := filter.EffectiveLimit()
	if limit == 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var items []domain.DonationRecord
	for rows.Next() {
		var (
			rec      domain.DonationRecord
			platform string
			amount   string
			method   string
			received int64
		)
		if err := rows.Scan(&rec.ID, &rec.ExternalID, &platform, &rec.Donor, &amount, &rec.Message, &rec.MatchedIdentity, &method, &received); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse donation amount %q: %w", amount, err)
		}
		rec.Platform = domain.Platform(platform)
		rec.MatchMethod = domain.MatchMethod(method)
		rec.Timestamp = time.Unix(0, received).UTC()
		items = append(items, rec)
	}
	return items, rows.Err()
}

// RecordDonation folds the donation into the identity's row inside a
// transaction so the decimal sum is computed in Go without losing updates.
func (s *Store) RecordDonation(ctx context.Context, identity string, amount decimal.Decimal, ts time.Time) error {
	if identity == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leaderboard: %w", err)
	}
	defer tx.Rollback()

	entry := domain.LeaderboardEntry{Identity: identity}
	var (
		total string
		last  int64
	)
	err = tx.QueryRowContext(ctx, `SELECT total, donations, last_at FROM leaderboard WHERE identity = ?`, identity).
		Scan(&total, &entry.DonationCount, &last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select leaderboard: %w", err)
	default:
		if entry.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return fmt.Errorf("parse leaderboard total %q: %w", total, err)
		}
		entry.LastDonationAt = time.Unix(0, last).UTC()
	}
	entry.Apply(amount, ts)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leaderboard (identity, total, donations, last_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET total = excluded.total, donations = excluded.donations, last_at = excluded.last_at`,
		identity, entry.TotalAmount.String(), entry.DonationCount, entry.LastDonationAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return tx.Commit()
}

// Top loads every row and ranks in Go; totals are stored as decimal text so
// SQLite cannot order them numerically.
func (s *Store) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT identity, total, donations, last_at FROM leaderboard`)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var (
			e     domain.LeaderboardEntry
			total string
			last  int64
		)
		if err := rows.Scan(&e.Identity, &total, &e.DonationCount, &last); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		if e.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse leaderboard total %q: %w", total, err)
		}
		e.LastDonationAt = time.Unix(0, last).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	domain.SortLeaderboard(entries)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

var _ domain.Store = (*Store)(nil)
