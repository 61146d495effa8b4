package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"donationhub/internal/domain"
)

const sourceAll = "all"

// Donations lists recent donations for the game client, newest first.
func (a *App) Donations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	if source == "" {
		source = string(domain.PlatformBagiBagi)
	}
	filter := domain.LedgerFilter{
		Identity: strings.TrimSpace(q.Get("username")),
		Since:    parseSince(q.Get("since")),
		Limit:    domain.ClampLimit(queryInt(q.Get("limit")), domain.DefaultQueryLimit),
	}
	if source != sourceAll {
		p, ok := domain.ParsePlatform(source)
		if !ok {
			a.error(w, http.StatusBadRequest, "unknown source")
			return
		}
		filter.Platform = p
	}

	records, err := a.Ledger.Query(r.Context(), filter)
	if err != nil {
		a.Logger.Error().Err(err).Str("source", source).Msg("query donations failed")
		a.error(w, http.StatusInternalServerError, "Database error")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"ok":        true,
		"donations": toDonationDTOs(records),
		"source":    source,
	})
}

// TopSpenders returns the leaderboard.
func (a *App) TopSpenders(w http.ResponseWriter, r *http.Request) {
	limit := domain.ClampLimit(queryInt(r.URL.Query().Get("limit")), domain.DefaultLeaderboardLimit)
	entries, err := a.Leaderboard.Top(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load leaderboard failed")
		a.error(w, http.StatusInternalServerError, "Database error")
		return
	}
	spenders := toSpenderDTOs(entries)
	a.json(w, http.StatusOK, map[string]any{
		"ok":          true,
		"topSpenders": spenders,
		"count":       len(spenders),
	})
}

// parseSince accepts epoch milliseconds or RFC 3339. Anything else disables
// the filter.
func parseSince(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	return time.Time{}
}

func queryInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
