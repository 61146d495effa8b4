package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies the third-party service a donation webhook came from.
type Platform string

const (
	PlatformBagiBagi Platform = "bagibagi"
	PlatformSaweria  Platform = "saweria"
)

// Platforms lists every supported source platform in a stable order.
var Platforms = []Platform{PlatformBagiBagi, PlatformSaweria}

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(v string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range Platforms {
		if p == known {
			return p, true
		}
	}
	return "", false
}

const (
	// DefaultDonor is used when a webhook omits every donor field.
	DefaultDonor = "Anonymous"

	// DefaultLedgerRetention caps the number of records kept per platform.
	DefaultLedgerRetention = 500
)

// DonationEvent is the normalized form of an inbound webhook before matching.
type DonationEvent struct {
	Donor    string
	Amount   decimal.Decimal
	Message  string
	Platform Platform
	// ExplicitIdentity is a trusted identity field supplied by the platform
	// adapter. It is never derived from free text.
	ExplicitIdentity string
	// ExternalID is the provider's own event id, used for delivery dedupe.
	ExternalID string
	ReceivedAt time.Time
}

// DonationRecord is an accepted donation as stored in the ledger. Records are
// immutable once appended.
type DonationRecord struct {
	ID              string
	ExternalID      string
	Timestamp       time.Time
	Donor           string
	Amount          decimal.Decimal
	Message         string
	MatchedIdentity string
	MatchMethod     MatchMethod
	Platform        Platform
}

// Matched reports whether the record is attributed to an identity.
func (r DonationRecord) Matched() bool {
	return r.MatchedIdentity != ""
}

// LedgerFilter narrows a ledger query. Zero values disable a filter.
type LedgerFilter struct {
	Identity string
	Since    time.Time
	Platform Platform
	Limit    int
	// Unlimited returns every retained record and ignores Limit. Reports set
	// it; request handlers never do.
	Unlimited bool
}

const (
	MinQueryLimit     = 1
	MaxQueryLimit     = 100
	DefaultQueryLimit = 25
)

// ClampLimit bounds a requested result size to [MinQueryLimit, MaxQueryLimit],
// substituting fallback when the request is unset.
func ClampLimit(requested, fallback int) int {
	if requested == 0 {
		requested = fallback
	}
	if requested < MinQueryLimit {
		return MinQueryLimit
	}
	if requested > MaxQueryLimit {
		return MaxQueryLimit
	}
	return requested
}

// EffectiveLimit is the clamped result size, or 0 when the filter is
// unlimited.
func (f LedgerFilter) EffectiveLimit() int {
	if f.Unlimited {
		return 0
	}
	return ClampLimit(f.Limit, DefaultQueryLimit)
}

// Accepts reports whether a record satisfies every populated filter field.
func (f LedgerFilter) Accepts(r DonationRecord) bool {
	if f.Platform != "" && r.Platform != f.Platform {
		return false
	}
	if f.Identity != "" && !strings.EqualFold(r.MatchedIdentity, f.Identity) {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
