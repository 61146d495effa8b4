package handlers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
)

type donationDTO struct {
	ID              string      `json:"id"`
	Ts              int64       `json:"ts"`
	Timestamp       string      `json:"timestamp"`
	Donor           string      `json:"donor"`
	Amount          json.Number `json:"amount"`
	Message         string      `json:"message,omitempty"`
	MatchedUsername string      `json:"matchedUsername,omitempty"`
	MatchMethod     string      `json:"matchMethod"`
	Source          string      `json:"source"`
}

func toDonationDTO(r domain.DonationRecord) donationDTO {
	return donationDTO{
		ID:              r.ID,
		Ts:              r.Timestamp.UnixMilli(),
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339Nano),
		Donor:           r.Donor,
		Amount:          amountJSON(r.Amount),
		Message:         r.Message,
		MatchedUsername: r.MatchedIdentity,
		MatchMethod:     string(r.MatchMethod),
		Source:          string(r.Platform),
	}
}

func toDonationDTOs(records []domain.DonationRecord) []donationDTO {
	out := make([]donationDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toDonationDTO(r))
	}
	return out
}

type spenderDTO struct {
	Username      string      `json:"username"`
	TotalAmount   json.Number `json:"totalAmount"`
	DonationCount int64       `json:"donationCount"`
	LastDonation  string      `json:"lastDonation"`
}

func toSpenderDTOs(entries []domain.LeaderboardEntry) []spenderDTO {
	out := make([]spenderDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, spenderDTO{
			Username:      e.Identity,
			TotalAmount:   amountJSON(e.TotalAmount),
			DonationCount: e.DonationCount,
			LastDonation:  e.LastDonationAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// amountJSON renders amounts as bare JSON numbers without float rounding.
func amountJSON(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
