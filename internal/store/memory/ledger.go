package memory

import (
	"context"
	"sort"
	"sync"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
)

// Ledger is a per-platform FIFO of donation records.
type Ledger struct {
	mu        sync.RWMutex
	gen       ids.Generator
	retention int
	seq       int64
	records   map[domain.Platform][]entry
}

type entry struct {
	seq    int64
	record domain.DonationRecord
}

func NewLedger(gen ids.Generator, retention int) *Ledger {
	if retention <= 0 {
		retention = domain.DefaultLedgerRetention
	}
	return &Ledger{
		gen:       gen,
		retention: retention,
		records:   make(map[domain.Platform][]entry),
	}
}

func (l *Ledger) Append(_ context.Context, record domain.DonationRecord) (domain.DonationRecord, error) {
	record.ID = l.gen.NextID()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	list := append(l.records[record.Platform], entry{seq: l.seq, record: record})
	if over := len(list) - l.retention; over > 0 {
		list = append([]entry(nil), list[over:]...)
	}
	l.records[record.Platform] = list
	return record, nil
}

// Query returns matching records newest first. Records with equal
// timestamps are ordered by append sequence.
func (l *Ledger) Query(_ context.Context, filter domain.LedgerFilter) ([]domain.DonationRecord, error) {
	limit := filter.EffectiveLimit()

	l.mu.RLock()
	var matched []entry
	for _, list := range l.records {
		for _, e := range list {
			if filter.Accepts(e.record) {
				matched = append(matched, e)
			}
		}
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.record.Timestamp.Equal(b.record.Timestamp) {
			return a.record.Timestamp.After(b.record.Timestamp)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]domain.DonationRecord, len(matched))
	for i, e := range matched {
		out[i] = e.record
	}
	return out, nil
}

// Len returns the number of records currently retained for platform.
func (l *Ledger) Len(platform domain.Platform) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records[platform])
}
