// Package report summarises recent ledger activity for operators.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
	"donationhub/internal/notify"
)

// Period is a named look-back window.
type Period struct {
	Key    string
	Label  string
	Window time.Duration
}

var periods = []Period{
	{Key: "1h", Label: "1 Jam Terakhir", Window: time.Hour},
	{Key: "24h", Label: "24 Jam Terakhir", Window: 24 * time.Hour},
	{Key: "7d", Label: "7 Hari Terakhir", Window: 7 * 24 * time.Hour},
	{Key: "30d", Label: "30 Hari Terakhir", Window: 30 * 24 * time.Hour},
}

// DefaultPeriod is used for empty or unknown period keys.
var DefaultPeriod = periods[1]

// ParsePeriod resolves key, falling back to DefaultPeriod.
func ParsePeriod(key string) Period {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range periods {
		if p.Key == key {
			return p
		}
	}
	return DefaultPeriod
}

const topN = 5

// Ranked is one row of a top list.
type Ranked struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Stats aggregates the donations received within a period.
type Stats struct {
	Period           string          `json:"period"`
	Since            time.Time       `json:"since"`
	TotalDonations   int             `json:"totalDonations"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	MatchedDonations int             `json:"matchedDonations"`
	MatchRate        float64         `json:"matchRate"`
	Average          decimal.Decimal `json:"average"`
	TopDonors        []Ranked        `json:"topDonors"`
	TopRecipients    []Ranked        `json:"topRecipients"`
}

// Compute reads every retained record of every platform received since
// now-period and summarises them.
func Compute(ctx context.Context, ledger domain.Ledger, period Period, now time.Time) (Stats, error) {
	since := now.Add(-period.Window)
	var records []domain.DonationRecord
	for _, p := range domain.Platforms {
		got, err := ledger.Query(ctx, domain.LedgerFilter{Platform: p, Since: since, Unlimited: true})
		if err != nil {
			return Stats{}, fmt.Errorf("query %s donations: %w", p, err)
		}
		records = append(records, got...)
	}
	stats := Summarize(records)
	stats.Period = period.Label
	stats.Since = since
	return stats, nil
}

// Summarize folds records into Stats without touching Period or Since.
func Summarize(records []domain.DonationRecord) Stats {
	s := Stats{
		TotalAmount:   decimal.Zero,
		Average:       decimal.Zero,
		TopDonors:     []Ranked{},
		TopRecipients: []Ranked{},
	}
	donors := map[string]*Ranked{}
	recipients := map[string]*Ranked{}
	for _, r := range records {
		s.TotalDonations++
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
		tally(donors, r.Donor, r.Amount)
		if r.Matched() {
			s.MatchedDonations++
			tally(recipients, r.MatchedIdentity, r.Amount)
		}
	}
	if s.TotalDonations > 0 {
		s.Average = s.TotalAmount.Div(decimal.NewFromInt(int64(s.TotalDonations)))
		rate := decimal.NewFromInt(int64(s.MatchedDonations * 100)).
			Div(decimal.NewFromInt(int64(s.TotalDonations))).
			Round(1)
		s.MatchRate = rate.InexactFloat64()
	}
	s.TopDonors = top(donors)
	s.TopRecipients = top(recipients)
	return s
}

func tally(m map[string]*Ranked, name string, amount decimal.Decimal) {
	r, ok := m[name]
	if !ok {
		r = &Ranked{Name: name, Amount: decimal.Zero}
		m[name] = r
	}
	r.Amount = r.Amount.Add(amount)
	r.Count++
}

func top(m map[string]*Ranked) []Ranked {
	out := make([]Ranked, 0, len(m))
	for _, r := range m {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Payload renders stats as a Discord embed.
func Payload(s Stats, now time.Time) notify.WebhookPayload {
	trend := "📉 Sepi"
	if s.TotalDonations > 0 {
		trend = "📈 Aktif"
	}
	return notify.WebhookPayload{
		Username: "Analytics Bot",
		Embeds: []notify.Embed{{
			Title:       "📊 STATISTIK DONASI - " + strings.ToUpper(s.Period),
			Description: "Laporan aktivitas donasi",
			Color:       0x3498db,
			Fields: []notify.EmbedField{
				{Name: "💰 Total Donasi", Value: fmt.Sprintf("%d donasi\n%s", s.TotalDonations, notify.FormatRupiah(s.TotalAmount)), Inline: true},
				{Name: "🎯 Match Rate", Value: fmt.Sprintf("%d/%d (%.1f%%)", s.MatchedDonations, s.TotalDonations, s.MatchRate), Inline: true},
				{Name: "⭐ Rata-rata", Value: notify.FormatRupiah(s.Average.Round(0)), Inline: true},
				{Name: "🏆 Top Donors", Value: rankedLines(s.TopDonors, "Belum ada donasi"), Inline: true},
				{Name: "🎮 Top Recipients", Value: rankedLines(s.TopRecipients, "Belum ada donasi matched"), Inline: true},
				{Name: "📈 Trend", Value: trend, Inline: true},
			},
			Footer:    &notify.EmbedFooter{Text: "Donation Analytics"},
			Timestamp: now.UTC().Format(time.RFC3339),
		}},
	}
}

func rankedLines(rows []Ranked, empty string) string {
	if len(rows) == 0 {
		return empty
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("**%s**: %s", r.Name, notify.FormatRupiah(r.Amount))
	}
	return strings.Join(lines, "\n")
}
