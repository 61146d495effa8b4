package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"donationhub/internal/domain"
)

// ErrNotConfigured is returned when no Discord webhook URL is set.
var ErrNotConfigured = errors.New("discord webhook not configured")

const (
	ColorMatched   = 0x00ff00
	ColorUnmatched = 0xffa500

	maxMessageRunes = 1000
)

// Level selects the colour and icon of a system embed.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

var levelStyle = map[Level]struct {
	color int
	icon  string
}{
	LevelInfo:    {0x3498db, "ℹ️"},
	LevelSuccess: {0x2ecc71, "✅"},
	LevelWarning: {0xf39c12, "⚠️"},
	LevelError:   {0xe74c3c, "❌"},
}

// ParseLevel falls back to LevelInfo for unknown names.
func ParseLevel(v string) Level {
	if _, ok := levelStyle[Level(v)]; ok {
		return Level(v)
	}
	return LevelInfo
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// WebhookPayload is the body accepted by a Discord incoming webhook.
type WebhookPayload struct {
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

var (
	rupiahPrinter = message.NewPrinter(language.Indonesian)
	titleCaser    = cases.Title(language.Indonesian)
)

// FormatRupiah renders amount with Indonesian digit grouping, e.g. "Rp 15.000".
// Fractions are kept to two places only when present.
func FormatRupiah(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return rupiahPrinter.Sprintf("Rp %d", amount.IntPart())
	}
	f, _ := amount.Round(2).Float64()
	return rupiahPrinter.Sprintf("Rp %.2f", f)
}

// PlatformTitle is the human name for a platform, e.g. "Saweria".
func PlatformTitle(p domain.Platform) string {
	return titleCaser.String(string(p))
}

// DonationPayload builds the Discord message for one accepted donation.
func DonationPayload(r domain.DonationRecord) WebhookPayload {
	matched := r.Matched()
	embed := Embed{
		Title:       "💰 DONASI BARU",
		Description: fmt.Sprintf("**%s** mendonasi tanpa target spesifik", r.Donor),
		Color:       ColorUnmatched,
		Fields: []EmbedField{
			{Name: "💵 Jumlah", Value: FormatRupiah(r.Amount), Inline: true},
			{Name: "👤 Donor", Value: r.Donor, Inline: true},
		},
		Footer:    &EmbedFooter{Text: PlatformTitle(r.Platform) + " Webhook Integration"},
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	}
	if matched {
		embed.Title = "🎉 DONASI BARU - MATCHED!"
		embed.Description = fmt.Sprintf("**%s** mendonasi untuk **%s**!", r.Donor, r.MatchedIdentity)
		embed.Color = ColorMatched
		embed.Fields = append(embed.Fields, EmbedField{Name: "🎮 Target Roblox", Value: r.MatchedIdentity, Inline: true})
	}
	if r.Message != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "💬 Pesan", Value: truncateRunes(r.Message, maxMessageRunes)})
	}
	return WebhookPayload{
		Username: PlatformTitle(r.Platform) + " Bot",
		Embeds:   []Embed{embed},
	}
}

// SystemPayload builds an operational message.
func SystemPayload(title, description string, level Level, now time.Time) WebhookPayload {
	style := levelStyle[ParseLevel(string(level))]
	return WebhookPayload{
		Username: "Donation System",
		Embeds: []Embed{{
			Title:       style.icon + " " + title,
			Description: description,
			Color:       style.color,
			Footer:      &EmbedFooter{Text: "Webhook Integration System"},
			Timestamp:   now.UTC().Format(time.RFC3339),
		}},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Discord posts payloads to one incoming-webhook URL.
type Discord struct {
	url    string
	client *http.Client
}

// NewDiscord returns a client bounded by timeout per request. An empty url
// yields a client whose Post reports ErrNotConfigured.
func NewDiscord(url string, timeout time.Duration) *Discord {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discord{url: url, client: &http.Client{Timeout: timeout}}
}

func (d *Discord) Configured() bool {
	return d != nil && d.url != ""
}

func (d *Discord) Post(ctx context.Context, payload WebhookPayload) error {
	if !d.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}
	return nil
}

// Send implements Sender by posting the donation embed.
func (d *Discord) Send(ctx context.Context, r domain.DonationRecord) error {
	return d.Post(ctx, DonationPayload(r))
}
