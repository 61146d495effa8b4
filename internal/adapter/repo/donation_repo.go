package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/infra"
	"donationhub/internal/sqlinline"
)

// DonationRepositoryPG implements domain.Ledger using PostgreSQL.
type DonationRepositoryPG struct {
	sql       infra.SQLExecutor
	gen       ids.Generator
	retention int
}

// NewDonationRepository creates a new donation repo keeping at most retention
// rows per platform.
func NewDonationRepository(sql infra.SQLExecutor, gen ids.Generator, retention int) *DonationRepositoryPG {
	if retention <= 0 {
		retention = domain.DefaultLedgerRetention
	}
	return &DonationRepositoryPG{sql: sql, gen: gen, retention: retention}
}

// Append inserts the record and evicts the platform's oldest rows beyond the
// retention cap in one transaction, so a failed trim leaves nothing behind.
func (r *DonationRepositoryPG) Append(ctx context.Context, record domain.DonationRecord) (domain.DonationRecord, error) {
	record.ID = r.gen.NextID()
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		_, err := tx.Exec(ctx, sqlinline.QInsertDonation,
			record.ID,
			record.ExternalID,
			string(record.Platform),
			record.Donor,
			record.Amount.String(),
			record.Message,
			record.MatchedIdentity,
			string(record.MatchMethod),
			record.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert donation: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlinline.QTrimDonations, string(record.Platform), r.retention); err != nil {
			return fmt.Errorf("trim donations: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.DonationRecord{}, err
	}
	return record, nil
}

// Query returns matching donations newest first.
func (r *DonationRepositoryPG) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.DonationRecord, error) {
	var since *time.Time
	if !filter.Since.IsZero() {
		s := filter.Since
		since = &s
	}
	var limit *int
	if n := filter.EffectiveLimit(); n > 0 {
		limit = &n
	}

	rows, err := r.sql.Query(ctx, sqlinline.QListDonations, string(filter.Platform), filter.Identity, since, limit)
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
		)
		if err := rows.Scan(&rec.ID, &rec.ExternalID, &platform, &rec.Donor, &amount, &rec.Message, &rec.MatchedIdentity, &method, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse donation amount %q: %w", amount, err)
		}
		rec.Platform = domain.Platform(platform)
		rec.MatchMethod = domain.MatchMethod(method)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return items, nil
}
