package repo

import (
	"context"
	"fmt"

	"donationhub/internal/domain"
	"donationhub/internal/infra"
	"donationhub/internal/sqlinline"
)

// DirectoryRepositoryPG implements domain.Registrar using PostgreSQL.
type DirectoryRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDirectoryRepository creates a new directory repo.
func NewDirectoryRepository(sql infra.SQLExecutor) *DirectoryRepositoryPG {
	return &DirectoryRepositoryPG{sql: sql}
}

func (r *DirectoryRepositoryPG) IdentityForCode(ctx context.Context, code string) (string, bool, error) {
	var identity string
	err := r.sql.QueryRow(ctx, sqlinline.QSelectIdentityByCode, code).Scan(&identity)
	if infra.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select identity by code: %w", err)
	}
	return identity, true, nil
}

func (r *DirectoryRepositoryPG) DisplayName(ctx context.Context, identity string) (string, bool, error) {
	var name string
	err := r.sql.QueryRow(ctx, sqlinline.QSelectDisplayName, identity).Scan(&name)
	if infra.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select display name: %w", err)
	}
	return name, true, nil
}

// Snapshot reads both tables in insertion order.
func (r *DirectoryRepositoryPG) Snapshot(ctx context.Context) (domain.DirectorySnapshot, error) {
	var snap domain.DirectorySnapshot

	rows, err := r.sql.Query(ctx, sqlinline.QListRegistrations)
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

	names, err := r.DisplayNames(ctx)
	if err != nil {
		return snap, err
	}
	snap.DisplayNames = names
	return snap, nil
}

// Register returns the existing code for identity or inserts newCode. A
// conflicting insert is resolved by re-reading the identity's row; if it is
// still absent the conflict was on the code itself.
func (r *DirectoryRepositoryPG) Register(ctx context.Context, identity, newCode string) (domain.RegistrationEntry, bool, error) {
	if entry, ok, err := r.registrationFor(ctx, identity); err != nil || ok {
		return entry, false, err
	}

	var entry domain.RegistrationEntry
	err := r.sql.QueryRow(ctx, sqlinline.QInsertRegistration, newCode, identity).Scan(&entry.Code, &entry.Identity)
	if err == nil {
		return entry, true, nil
	}
	if !infra.IsNoRows(err) {
		return domain.RegistrationEntry{}, false, fmt.Errorf("insert registration: %w", err)
	}

	if entry, ok, err := r.registrationFor(ctx, identity); err != nil || ok {
		return entry, false, err
	}
	return domain.RegistrationEntry{}, false, domain.ErrCodeExhausted
}

func (r *DirectoryRepositoryPG) registrationFor(ctx context.Context, identity string) (domain.RegistrationEntry, bool, error) {
	var entry domain.RegistrationEntry
	err := r.sql.QueryRow(ctx, sqlinline.QSelectCodeByIdentity, identity).Scan(&entry.Code, &entry.Identity)
	if infra.IsNoRows(err) {
		return domain.RegistrationEntry{}, false, nil
	}
	if err != nil {
		return domain.RegistrationEntry{}, false, fmt.Errorf("select code by identity: %w", err)
	}
	return entry, true, nil
}

func (r *DirectoryRepositoryPG) SetDisplayName(ctx context.Context, identity, displayName string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertDisplayName, identity, displayName); err != nil {
		return fmt.Errorf("upsert display name: %w", err)
	}
	return nil
}

func (r *DirectoryRepositoryPG) DisplayNames(ctx context.Context) ([]domain.DisplayNameEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListDisplayNames)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list display names: %w", err)
	}
	return items, nil
}
