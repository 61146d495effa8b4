package ingest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/metrics"
	"donationhub/internal/store/memory"
)

var fixedNow = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

func counterIDs() ids.Generator {
	var n atomic.Int64
	return ids.Func(func() string { return "don-" + strconv.FormatInt(n.Add(1), 10) })
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []domain.DonationRecord
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r domain.DonationRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, r)
	return n.err
}

type failingLedger struct{ domain.Ledger }

func (failingLedger) Append(context.Context, domain.DonationRecord) (domain.DonationRecord, error) {
	return domain.DonationRecord{}, errors.New("disk full")
}

type failingLeaderboard struct{ domain.Leaderboard }

func (failingLeaderboard) RecordDonation(context.Context, string, decimal.Decimal, time.Time) error {
	return errors.New("leaderboard offline")
}

// cancelAfterAppend cancels the request context once the ledger write has
// succeeded, as a client hanging up mid-request would.
type cancelAfterAppend struct {
	domain.Ledger
	cancel context.CancelFunc
}

func (l cancelAfterAppend) Append(ctx context.Context, r domain.DonationRecord) (domain.DonationRecord, error) {
	rec, err := l.Ledger.Append(ctx, r)
	l.cancel()
	return rec, err
}

// contextLeaderboard fails on a done context like the database backends do.
type contextLeaderboard struct{ domain.Leaderboard }

func (b contextLeaderboard) RecordDonation(ctx context.Context, identity string, amount decimal.Decimal, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Leaderboard.RecordDonation(ctx, identity, amount, ts)
}

func newPipeline(t *testing.T) (*Pipeline, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.New(counterIDs(), 0)
	ctx := context.Background()
	_, _, err := store.Register(ctx, "moonzet16", "AB12CD")
	require.NoError(t, err)
	_, _, err = store.Register(ctx, "kiki", "QW34ER")
	require.NoError(t, err)

	n := &recordingNotifier{}
	return &Pipeline{
		Directory:   store,
		Ledger:      store,
		Leaderboard: store,
		Notifier:    n,
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return fixedNow },
	}, store, n
}

func TestIngestMatchesCodeAndAggregates(t *testing.T) {
	p, store, n := newPipeline(t)

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformBagiBagi,
		Body:     []byte(`{"donor":"Moonzet16","amount":15000,"message":"gg #AB12CD"}`),
	})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "don-1", res.Record.ID)
	assert.Equal(t, "moonzet16", res.Record.MatchedIdentity)
	assert.Equal(t, domain.MatchCode, res.Record.MatchMethod)
	assert.Equal(t, fixedNow, res.Record.Timestamp)

	entry, ok := store.Entry("moonzet16")
	require.True(t, ok)
	assert.Equal(t, "15000", entry.TotalAmount.String())
	require.Len(t, n.records, 1)
	assert.Equal(t, res.Record, n.records[0])
}

func TestIngestFallbackUsesDonorName(t *testing.T) {
	p, store, _ := newPipeline(t)

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformSaweria,
		Body:     []byte(`{"donor":"RandomGuy","amount":5000}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "RandomGuy", res.Record.MatchedIdentity)
	assert.Equal(t, domain.MatchFallback, res.Record.MatchMethod)

	_, ok := store.Entry("RandomGuy")
	assert.True(t, ok)
}

func TestIngestFallbackKeepsRawDonor(t *testing.T) {
	p, store, _ := newPipeline(t)

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformSaweria,
		Body:     []byte(`{"donor":" Random  Guy ","amount":5000}`),
	})
	require.NoError(t, err)
	assert.Equal(t, " Random  Guy ", res.Record.Donor)
	assert.Equal(t, " Random  Guy ", res.Record.MatchedIdentity)
	assert.Equal(t, domain.MatchFallback, res.Record.MatchMethod)

	_, ok := store.Entry(" Random  Guy ")
	assert.True(t, ok)
}

func TestIngestZeroAmountIsPersisted(t *testing.T) {
	p, store, _ := newPipeline(t)

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformSaweria,
		Body:     []byte(`{"donor":"Stranger","amount":0}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Record.Amount.IsZero())
	assert.Equal(t, 1, store.Len(domain.PlatformSaweria))
}

func TestIngestMalformedBodyUsesDefaults(t *testing.T) {
	p, store, _ := newPipeline(t)

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformBagiBagi,
		Body:     []byte(`this is not json`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDonor, res.Record.Donor)
	assert.True(t, res.Record.Amount.IsZero())
	assert.Equal(t, domain.DefaultDonor, res.Record.MatchedIdentity)
	assert.Equal(t, 1, store.Len(domain.PlatformBagiBagi))
}

func TestIngestTokenCheck(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		body    string
		wantErr bool
	}{
		{name: "header token", header: "s3cret", body: `{"donor":"a"}`},
		{name: "body token", body: `{"donor":"a","token":"s3cret"}`},
		{name: "header wins over body", header: "s3cret", body: `{"donor":"a","token":"wrong"}`},
		{name: "mismatch", header: "nope", body: `{"donor":"a"}`, wantErr: true},
		{name: "missing", body: `{"donor":"a"}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, store, n := newPipeline(t)
			p.Tokens = map[domain.Platform]string{domain.PlatformBagiBagi: "s3cret"}

			_, err := p.Ingest(context.Background(), Delivery{
				Platform: domain.PlatformBagiBagi,
				Body:     []byte(tc.body),
				Token:    tc.header,
			})
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				assert.True(t, IsClientError(err))
				assert.Equal(t, 0, store.Len(domain.PlatformBagiBagi), "no side effects on rejection")
				assert.Empty(t, n.records)
				assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.WebhooksRejected.WithLabelValues("bagibagi", "unauthorized")))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 1, store.Len(domain.PlatformBagiBagi))
		})
	}
}

func TestIngestTokenOnlyAppliesToConfiguredPlatform(t *testing.T) {
	p, _, _ := newPipeline(t)
	p.Tokens = map[domain.Platform]string{domain.PlatformBagiBagi: "s3cret"}

	_, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformSaweria,
		Body:     []byte(`{"donor":"a"}`),
	})
	assert.NoError(t, err)
}

func TestIngestUnknownPlatform(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Ingest(context.Background(), Delivery{Platform: "trakteer", Body: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestPersistenceFailureAborts(t *testing.T) {
	p, store, n := newPipeline(t)
	p.Ledger = failingLedger{}
	p.Guard = NewMemoryGuard(time.Hour)

	body := []byte(`{"id":"evt-1","donor":"kiki","amount":100}`)
	_, err := p.Ingest(context.Background(), Delivery{Platform: domain.PlatformBagiBagi, Body: body})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.False(t, IsClientError(err))

	_, ok := store.Entry("kiki")
	assert.False(t, ok, "aggregate must not run when the ledger write fails")
	assert.Empty(t, n.records)

	p.Ledger = store
	res, err := p.Ingest(context.Background(), Delivery{Platform: domain.PlatformBagiBagi, Body: body})
	require.NoError(t, err)
	assert.False(t, res.Duplicate, "a failed delivery may be retried")
}

func TestIngestAggregateFailureIsDegraded(t *testing.T) {
	p, store, n := newPipeline(t)
	p.Leaderboard = failingLeaderboard{}

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformBagiBagi,
		Body:     []byte(`{"donor":"kiki","amount":100}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "kiki", res.Record.MatchedIdentity)
	assert.Equal(t, 1, store.Len(domain.PlatformBagiBagi), "ledger write is kept")
	assert.Len(t, n.records, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.DegradedStages.WithLabelValues("aggregate")))
}

func TestIngestCompletesAfterClientCancels(t *testing.T) {
	p, store, n := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Ledger = cancelAfterAppend{Ledger: store, cancel: cancel}
	p.Leaderboard = contextLeaderboard{Leaderboard: store}

	res, err := p.Ingest(ctx, Delivery{
		Platform: domain.PlatformBagiBagi,
		Body:     []byte(`{"donor":"kiki","amount":5000}`),
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.False(t, res.Degraded)

	entry, ok := store.Entry("kiki")
	require.True(t, ok, "a persisted donation must reach the leaderboard")
	assert.Equal(t, "5000", entry.TotalAmount.String())
	assert.Len(t, n.records, 1)
}

func TestIngestNotificationFailureDoesNotFail(t *testing.T) {
	p, _, n := newPipeline(t)
	n.err = errors.New("queue full")

	res, err := p.Ingest(context.Background(), Delivery{
		Platform: domain.PlatformSaweria,
		Body:     []byte(`{"donor":"kiki","amount":100}`),
	})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.DegradedStages.WithLabelValues("notify")))
}

func TestIngestDuplicateDelivery(t *testing.T) {
	p, store, _ := newPipeline(t)
	p.Guard = NewMemoryGuard(time.Hour)
	body := []byte(`{"donation_id":"d-42","donor":"kiki","amount":100}`)

	first, err := p.Ingest(context.Background(), Delivery{Platform: domain.PlatformSaweria, Body: body})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := p.Ingest(context.Background(), Delivery{Platform: domain.PlatformSaweria, Body: body})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	assert.Equal(t, 1, store.Len(domain.PlatformSaweria))
	entry, _ := store.Entry("kiki")
	assert.Equal(t, int64(1), entry.DonationCount)

	other, err := p.Ingest(context.Background(), Delivery{Platform: domain.PlatformBagiBagi, Body: body})
	require.NoError(t, err)
	assert.False(t, other.Duplicate, "event ids are scoped per platform")
}

func TestIngestConcurrentDonationsToOneIdentity(t *testing.T) {
	p, store, _ := newPipeline(t)
	p.Notifier = nil

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := p.Ingest(context.Background(), Delivery{
				Platform: domain.PlatformBagiBagi,
				Body:     []byte(`{"donor":"someone","amount":10,"message":"#AB12CD"}`),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, ok := store.Entry("moonzet16")
	require.True(t, ok)
	assert.Equal(t, "1000", entry.TotalAmount.String())
	assert.Equal(t, int64(workers), entry.DonationCount)
}

func TestAcceptExplicitIdentity(t *testing.T) {
	p, _, _ := newPipeline(t)

	res, err := p.Accept(context.Background(), domain.DonationEvent{
		Donor:            "Sim",
		Amount:           decimal.NewFromInt(1),
		Message:          "#AB12CD",
		Platform:         domain.PlatformSaweria,
		ExplicitIdentity: "PlayerOne",
		ReceivedAt:       fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "PlayerOne", res.Record.MatchedIdentity)
	assert.Equal(t, domain.MatchExplicit, res.Record.MatchMethod)
}
