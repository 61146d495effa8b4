// Package notify delivers accepted donations to Discord, either directly or
// through RabbitMQ for the worker to pick up.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
)

const (
	// Exchange is the topic exchange donation events are published to.
	Exchange = "donation_events"
	// RoutingKeyAccepted routes accepted donations.
	RoutingKeyAccepted = "donation.accepted"
)

// DonationMessage is the wire form of an accepted donation.
type DonationMessage struct {
	ID              string    `json:"id"`
	ExternalID      string    `json:"external_id,omitempty"`
	Platform        string    `json:"platform"`
	Donor           string    `json:"donor"`
	Amount          string    `json:"amount"`
	Message         string    `json:"message,omitempty"`
	MatchedIdentity string    `json:"matched_identity,omitempty"`
	MatchMethod     string    `json:"match_method"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewDonationMessage(r domain.DonationRecord) DonationMessage {
	return DonationMessage{
		ID:              r.ID,
		ExternalID:      r.ExternalID,
		Platform:        string(r.Platform),
		Donor:           r.Donor,
		Amount:          r.Amount.String(),
		Message:         r.Message,
		MatchedIdentity: r.MatchedIdentity,
		MatchMethod:     string(r.MatchMethod),
		Timestamp:       r.Timestamp,
	}
}

// Record converts the message back into a ledger record.
func (m DonationMessage) Record() (domain.DonationRecord, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return domain.DonationRecord{}, fmt.Errorf("donation message amount %q: %w", m.Amount, err)
	}
	return domain.DonationRecord{
		ID:              m.ID,
		ExternalID:      m.ExternalID,
		Timestamp:       m.Timestamp,
		Donor:           m.Donor,
		Amount:          amount,
		Message:         m.Message,
		MatchedIdentity: m.MatchedIdentity,
		MatchMethod:     domain.MatchMethod(m.MatchMethod),
		Platform:        domain.Platform(m.Platform),
	}, nil
}

// DecodeDonationMessage parses a message body published by Publisher.
func DecodeDonationMessage(body []byte) (domain.DonationRecord, error) {
	var m DonationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.DonationRecord{}, fmt.Errorf("decode donation message: %w", err)
	}
	return m.Record()
}
