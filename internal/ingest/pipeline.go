// Package ingest turns a platform webhook delivery into a ledger record and a
// leaderboard update.
//
// A delivery moves through parse, authorize, match, persist, aggregate and
// notify. Anything that fails before the ledger write aborts the delivery with
// nothing stored. Once the record is in the ledger the delivery is accepted:
// aggregate and notification failures are logged and reported as degraded.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"donationhub/internal/domain"
	"donationhub/internal/matcher"
	"donationhub/internal/metrics"
)

// settleTimeout bounds the aggregate and notify steps once a record is in the
// ledger. They run detached from the caller's cancellation.
const settleTimeout = 10 * time.Second

// Notifier receives accepted donations. Implementations must not block the
// caller beyond a bounded attempt.
type Notifier interface {
	Notify(ctx context.Context, record domain.DonationRecord) error
}

// Delivery is one inbound webhook request.
type Delivery struct {
	Platform domain.Platform
	Body     []byte
	// Token is the secret presented out of band (header). When empty the
	// body's "token" field is used instead.
	Token string
}

// Result describes how a delivery was handled.
type Result struct {
	Record    domain.DonationRecord
	Duplicate bool
	Degraded  bool
}

// Pipeline wires the stores the ingestion flow depends on. Notifier, Guard
// and Metrics are optional.
type Pipeline struct {
	Directory   domain.Directory
	Ledger      domain.Ledger
	Leaderboard domain.Leaderboard
	Notifier    Notifier
	Guard       DeliveryGuard
	Tokens      map[domain.Platform]string
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Ingest parses and authorizes a delivery, then accepts the resulting event.
func (p *Pipeline) Ingest(ctx context.Context, d Delivery) (Result, error) {
	start := time.Now()
	adapter, ok := AdapterFor(d.Platform)
	if !ok {
		return Result{}, fmt.Errorf("platform %q: %w", d.Platform, domain.ErrNotFound)
	}

	payload := DecodePayload(d.Body)

	token := d.Token
	if token == "" {
		token, _ = payload.String("token")
	}
	if !tokenMatches(p.Tokens[d.Platform], token) {
		p.Metrics.IncrementRejected(string(d.Platform), "unauthorized")
		p.Logger.Warn().Str("platform", string(d.Platform)).Msg("webhook token mismatch")
		return Result{}, domain.ErrUnauthorized
	}

	event := adapter.Event(payload, p.now())
	res, err := p.Accept(ctx, event)
	if err == nil {
		p.Metrics.ObserveIngestLatency(string(d.Platform), time.Since(start))
	}
	return res, err
}

// Accept runs an already normalized event through dedupe, matching,
// persistence, aggregation and notification.
func (p *Pipeline) Accept(ctx context.Context, event domain.DonationEvent) (Result, error) {
	platform := string(event.Platform)
	log := p.Logger.With().Str("platform", platform).Logger()

	dedupeKey := ""
	if p.Guard != nil && event.ExternalID != "" {
		dedupeKey = platform + ":" + event.ExternalID
		first, err := p.Guard.Claim(ctx, dedupeKey)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("external_id", event.ExternalID).Msg("delivery guard unavailable")
			dedupeKey = ""
		case !first:
			p.Metrics.IncrementDuplicate(platform)
			log.Info().Str("external_id", event.ExternalID).Msg("duplicate delivery acknowledged")
			return Result{Duplicate: true}, nil
		}
	}

	snap, err := p.Directory.Snapshot(ctx)
	if err != nil {
		p.release(ctx, dedupeKey)
		p.Metrics.IncrementRejected(platform, "persistence")
		return Result{}, fmt.Errorf("read directory: %w: %w", domain.ErrPersistence, err)
	}
	match := matcher.Resolve(event, snap)

	record, err := p.Ledger.Append(ctx, domain.DonationRecord{
		ExternalID:      event.ExternalID,
		Timestamp:       event.ReceivedAt,
		Donor:           event.Donor,
		Amount:          event.Amount,
		Message:         event.Message,
		MatchedIdentity: match.Identity,
		MatchMethod:     match.Method,
		Platform:        event.Platform,
	})
	if err != nil {
		p.release(context.WithoutCancel(ctx), dedupeKey)
		p.Metrics.IncrementRejected(platform, "persistence")
		log.Error().Err(err).Str("donor", event.Donor).Msg("ledger append failed")
		return Result{}, fmt.Errorf("append donation: %w: %w", domain.ErrPersistence, err)
	}

	log = log.With().
		Str("donation_id", record.ID).
		Str("identity", record.MatchedIdentity).
		Str("match_method", string(record.MatchMethod)).
		Logger()

	// The record is durable; a client hang-up must not cut off its totals.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	res := Result{Record: record}
	if err := p.Leaderboard.RecordDonation(ctx, record.MatchedIdentity, record.Amount, record.Timestamp); err != nil {
		res.Degraded = true
		p.Metrics.IncrementDegraded("aggregate")
		log.Error().Err(err).Msg("leaderboard update failed")
	}

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, record); err != nil {
			p.Metrics.IncrementDegraded("notify")
			log.Warn().Err(err).Msg("donation notification not queued")
		}
	}

	amount, _ := record.Amount.Float64()
	p.Metrics.IncrementAccepted(platform, string(record.MatchMethod), amount)
	log.Info().Str("donor", record.Donor).Str("amount", record.Amount.String()).Msg("donation accepted")
	return res, nil
}

func (p *Pipeline) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.Guard.Release(ctx, key); err != nil {
		p.Logger.Warn().Err(err).Str("key", key).Msg("delivery guard release failed")
	}
}

// IsClientError reports whether err should be answered with a 4xx status.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput)
}
