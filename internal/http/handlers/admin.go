package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donationhub/internal/domain"
	"donationhub/internal/notify"
	"donationhub/internal/report"
)

const discordTimeout = 10 * time.Second

type discordLogRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// DiscordLog forwards an operator message to Discord, as an embed when both
// title and description are present.
func (a *App) DiscordLog(w http.ResponseWriter, r *http.Request) {
	var req discordLogRequest
	if !a.decodeLenient(w, r, &req) {
		return
	}
	if req.Title == "" && req.Content == "" {
		a.error(w, http.StatusBadRequest, "Either title or content is required")
		return
	}

	var payload notify.WebhookPayload
	if req.Title != "" && req.Description != "" {
		payload = notify.SystemPayload(req.Title, req.Description, notify.ParseLevel(req.Type), a.now())
		payload.Username = "System Monitor"
	} else {
		content := req.Content
		if content == "" {
			content = "**" + req.Title + "**"
		}
		payload = notify.WebhookPayload{Content: content, Username: "System Monitor"}
	}
	if !a.postDiscord(r.Context(), w, payload) {
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "message": "Discord log sent successfully"})
}

func (a *App) DiscordTest(w http.ResponseWriter, r *http.Request) {
	payload := notify.SystemPayload("System Test", "Discord webhook integration is working correctly! 🎉", notify.LevelSuccess, a.now())
	payload.Username = "System Test"
	if !a.postDiscord(r.Context(), w, payload) {
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "message": "Test message sent to Discord successfully"})
}

// DiscordStats summarises the requested period and posts it to Discord.
func (a *App) DiscordStats(w http.ResponseWriter, r *http.Request) {
	period := report.ParsePeriod(r.URL.Query().Get("period"))
	now := a.now()
	stats, err := report.Compute(r.Context(), a.Ledger, period, now)
	if err != nil {
		a.Logger.Error().Err(err).Str("period", period.Key).Msg("compute stats failed")
		a.error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !a.postDiscord(r.Context(), w, report.Payload(stats, now)) {
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Statistics sent to Discord successfully",
		"stats":   stats,
	})
}

func (a *App) postDiscord(ctx context.Context, w http.ResponseWriter, payload notify.WebhookPayload) bool {
	ctx, cancel := context.WithTimeout(ctx, discordTimeout)
	defer cancel()
	err := a.Discord.Post(ctx, payload)
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "Discord webhook not configured")
		return false
	case err != nil:
		a.Logger.Error().Err(err).Msg("discord post failed")
		a.error(w, http.StatusBadGateway, "Failed to send message to Discord")
		return false
	}
	return true
}

// DebugDonations reports ledger counts, the leaderboard head and the most
// recent donations across every platform.
func (a *App) DebugDonations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := domain.ClampLimit(queryInt(r.URL.Query().Get("limit")), 20)

	all, err := a.Ledger.Query(ctx, domain.LedgerFilter{Unlimited: true})
	if err != nil {
		a.Logger.Error().Err(err).Msg("debug ledger query failed")
		a.error(w, http.StatusInternalServerError, "Database error")
		return
	}
	top, err := a.Leaderboard.Top(ctx, domain.DefaultLeaderboardLimit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("debug leaderboard query failed")
		a.error(w, http.StatusInternalServerError, "Database error")
		return
	}

	matched := 0
	spenders := map[string]struct{}{}
	perPlatform := map[domain.Platform]int{}
	for _, rec := range all {
		perPlatform[rec.Platform]++
		if rec.Matched() {
			matched++
			spenders[rec.MatchedIdentity] = struct{}{}
		}
	}
	latest := all
	if len(latest) > limit {
		latest = latest[:limit]
	}

	a.json(w, http.StatusOK, map[string]any{
		"ok": true,
		"stats": map[string]any{
			"total":                  len(all),
			"byPlatform":             perPlatform,
			"withMatchedUsername":    matched,
			"withoutMatchedUsername": len(all) - matched,
			"uniqueSpenders":         len(spenders),
		},
		"topSpenders":     toSpenderDTOs(top),
		"latestDonations": toDonationDTOs(latest),
	})
}

type simulateRequest struct {
	Platform string `json:"platform"`
	Donor    string `json:"donor"`
	Amount   string `json:"amount"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// SimulateDonation drives a synthetic donation through the pipeline. Query
// parameters override body fields so the endpoint also works from a browser.
func (a *App) SimulateDonation(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if r.Method == http.MethodPost && !a.decodeLenient(w, r, &req) {
		return
	}
	q := r.URL.Query()
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			*dst = v
		}
	}
	override(&req.Platform, "platform")
	override(&req.Donor, "donor")
	override(&req.Amount, "amount")
	override(&req.Message, "message")
	override(&req.Username, "username")

	platform := domain.PlatformBagiBagi
	if req.Platform != "" {
		p, ok := domain.ParsePlatform(req.Platform)
		if !ok {
			a.error(w, http.StatusBadRequest, "unknown platform")
			return
		}
		platform = p
	}
	if req.Donor == "" {
		req.Donor = "TestDonor"
	}
	if req.Message == "" {
		req.Message = "Test donation"
	}
	amount := decimal.NewFromInt(1000)
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || parsed.IsNegative() {
			a.error(w, http.StatusBadRequest, "amount must be a non-negative number")
			return
		}
		amount = parsed
	}

	event := domain.DonationEvent{
		Donor:            req.Donor,
		Amount:           amount,
		Message:          req.Message,
		Platform:         platform,
		ExplicitIdentity: req.Username,
		ReceivedAt:       a.now(),
	}
	res, err := a.Pipeline.Accept(r.Context(), event)
	if err != nil {
		a.Logger.Error().Err(err).Str("platform", string(platform)).Msg("simulated donation failed")
		a.error(w, http.StatusInternalServerError, "failed to record donation")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"ok":       true,
		"message":  "Test donation accepted",
		"donation": toDonationDTO(res.Record),
		"degraded": res.Degraded,
	})
}
