package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donationhub/internal/domain"
	"donationhub/internal/ids"
	"donationhub/internal/ingest"
	"donationhub/internal/notify"
	"donationhub/internal/store/memory"
)

var fixedNow = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	app   *App
	store *memory.Store
}

func newTestEnv(t *testing.T, tokens map[domain.Platform]string) *testEnv {
	t.Helper()
	var n atomic.Int64
	gen := ids.Func(func() string { return "don-" + strconv.FormatInt(n.Add(1), 10) })
	store := memory.New(gen, 0)
	pipeline := &ingest.Pipeline{
		Directory:   store,
		Ledger:      store,
		Leaderboard: store,
		Tokens:      tokens,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return fixedNow },
	}
	codes := []string{"AB12CD", "ZZ99YY", "QW34ER"}
	var next atomic.Int64
	return &testEnv{
		store: store,
		app: &App{
			Pipeline:    pipeline,
			Registrar:   store,
			Ledger:      store,
			Leaderboard: store,
			Logger:      zerolog.Nop(),
			Now:         func() time.Time { return fixedNow },
			NewCode: func() (string, error) {
				return codes[int(next.Add(1)-1)%len(codes)], nil
			},
		},
	}
}

func withPlatform(r *http.Request, platform string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("platform", platform)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), rr.Body.String())
	return out
}

func postWebhook(env *testEnv, platform, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+platform, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	env.app.Webhook(rr, withPlatform(req, platform))
	return rr
}

func TestWebhookAcceptsAndMatchesCode(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.store.Register(context.Background(), "moonzet16", "AB12CD")
	require.NoError(t, err)

	rr := postWebhook(env, "saweria", `{"donator_name":"Budi","amount_raw":15000,"message":"gg #AB12CD"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	out := decode(t, rr)
	assert.Equal(t, true, out["ok"])
	donation := out["donation"].(map[string]any)
	assert.Equal(t, "moonzet16", donation["matchedUsername"])
	assert.Equal(t, "code", donation["matchMethod"])
	assert.Equal(t, "saweria", donation["source"])
	assert.Equal(t, float64(15000), donation["amount"])
	assert.Equal(t, float64(fixedNow.UnixMilli()), donation["ts"])
	assert.NotContains(t, out, "degraded")

	top, err := env.store.Top(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "15000", top[0].TotalAmount.String())
}

func TestWebhookAuthorization(t *testing.T) {
	env := newTestEnv(t, map[domain.Platform]string{domain.PlatformBagiBagi: "s3cret"})

	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    int
	}{
		{name: "missing token", body: `{"donor":"a","amount":1}`, want: http.StatusUnauthorized},
		{name: "wrong header", body: `{"donor":"a","amount":1}`, headers: map[string]string{"X-Webhook-Token": "nope"}, want: http.StatusUnauthorized},
		{name: "header token", body: `{"donor":"a","amount":1}`, headers: map[string]string{"X-Webhook-Token": "s3cret"}, want: http.StatusOK},
		{name: "bearer token", body: `{"donor":"a","amount":1}`, headers: map[string]string{"Authorization": "Bearer s3cret"}, want: http.StatusOK},
		{name: "body token", body: `{"donor":"a","amount":1,"token":"s3cret"}`, want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postWebhook(env, "bagibagi", tc.body, tc.headers)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
			if tc.want != http.StatusOK {
				assert.Equal(t, false, decode(t, rr)["ok"])
			}
		})
	}

	records, err := env.store.Query(context.Background(), domain.LedgerFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 3, "rejected deliveries must not be stored")
}

func TestWebhookMalformedBodyUsesDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := postWebhook(env, "bagibagi", `not json at all`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	donation := decode(t, rr)["donation"].(map[string]any)
	assert.Equal(t, domain.DefaultDonor, donation["donor"])
	assert.Equal(t, float64(0), donation["amount"])
}

func TestWebhookUnknownPlatform(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := postWebhook(env, "paypal", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.Pipeline.Guard = ingest.NewMemoryGuard(time.Hour)

	body := `{"id":"evt-1","donor":"a","amount":5}`
	first := postWebhook(env, "saweria", body, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := postWebhook(env, "saweria", body, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, true, decode(t, second)["duplicate"])

	records, err := env.store.Query(context.Background(), domain.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

type failingLedger struct{ domain.Ledger }

func (failingLedger) Append(context.Context, domain.DonationRecord) (domain.DonationRecord, error) {
	return domain.DonationRecord{}, errors.New("disk full")
}

func (failingLedger) Query(context.Context, domain.LedgerFilter) ([]domain.DonationRecord, error) {
	return nil, errors.New("disk full")
}

func TestWebhookPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.Pipeline.Ledger = failingLedger{}

	rr := postWebhook(env, "saweria", `{"donor":"a","amount":5}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, decode(t, rr)["ok"])
}

type failingBoard struct{ domain.Leaderboard }

func (failingBoard) RecordDonation(context.Context, string, decimal.Decimal, time.Time) error {
	return errors.New("redis down")
}

func (failingBoard) Top(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return nil, errors.New("redis down")
}

func TestWebhookDegradedAggregate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.Pipeline.Leaderboard = failingBoard{}

	rr := postWebhook(env, "saweria", `{"donor":"a","amount":5}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, true, out["degraded"])
}

func seedDonations(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	for i, r := range []domain.DonationRecord{
		{Donor: "a", MatchedIdentity: "Kiki", Amount: decimal.NewFromInt(100), Platform: domain.PlatformBagiBagi, Timestamp: fixedNow.Add(-3 * time.Hour)},
		{Donor: "b", MatchedIdentity: "budi", Amount: decimal.NewFromInt(300), Platform: domain.PlatformBagiBagi, Timestamp: fixedNow.Add(-2 * time.Hour)},
		{Donor: "c", MatchedIdentity: "kiki", Amount: decimal.NewFromInt(50), Platform: domain.PlatformSaweria, Timestamp: fixedNow.Add(-time.Hour)},
		{Donor: "d", Amount: decimal.NewFromInt(10), Platform: domain.PlatformBagiBagi, Timestamp: fixedNow},
	} {
		rec, err := env.store.Append(ctx, r)
		require.NoError(t, err, i)
		require.NoError(t, env.store.RecordDonation(ctx, rec.MatchedIdentity, rec.Amount, rec.Timestamp))
	}
}

func getJSON(t *testing.T, h http.HandlerFunc, target string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr.Code, decode(t, rr)
}

func donorsOf(out map[string]any) []string {
	var donors []string
	for _, d := range out["donations"].([]any) {
		donors = append(donors, d.(map[string]any)["donor"].(string))
	}
	return donors
}

func TestDonations(t *testing.T) {
	env := newTestEnv(t, nil)
	seedDonations(t, env)

	tests := []struct {
		name   string
		target string
		code   int
		source string
		donors []string
	}{
		{name: "defaults to bagibagi", target: "/api/roblox/donations", code: 200, source: "bagibagi", donors: []string{"d", "b", "a"}},
		{name: "saweria", target: "/api/roblox/donations?source=SAWERIA", code: 200, source: "saweria", donors: []string{"c"}},
		{name: "all sources", target: "/api/roblox/donations?source=all&limit=2", code: 200, source: "all", donors: []string{"d", "c"}},
		{name: "username ignores case", target: "/api/roblox/donations?source=all&username=KIKI", code: 200, source: "all", donors: []string{"c", "a"}},
		{name: "since epoch millis", target: "/api/roblox/donations?since=" + strconv.FormatInt(fixedNow.Add(-2*time.Hour).UnixMilli(), 10), code: 200, source: "bagibagi", donors: []string{"d", "b"}},
		{name: "invalid since ignored", target: "/api/roblox/donations?since=yesterday", code: 200, source: "bagibagi", donors: []string{"d", "b", "a"}},
		{name: "limit clamped to one", target: "/api/roblox/donations?limit=-4", code: 200, source: "bagibagi", donors: []string{"d"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, out := getJSON(t, env.app.Donations, tc.target)
			require.Equal(t, tc.code, code)
			assert.Equal(t, tc.source, out["source"])
			assert.Equal(t, tc.donors, donorsOf(out))
		})
	}

	code, out := getJSON(t, env.app.Donations, "/api/roblox/donations?source=paypal")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, out["ok"])
}

func TestTopSpenders(t *testing.T) {
	env := newTestEnv(t, nil)
	seedDonations(t, env)

	code, out := getJSON(t, env.app.TopSpenders, "/api/roblox/top-spenders?limit=5")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), out["count"])
	spenders := out["topSpenders"].([]any)
	first := spenders[0].(map[string]any)
	assert.Equal(t, "budi", first["username"])
	assert.Equal(t, float64(300), first["totalAmount"])
	assert.Equal(t, float64(1), first["donationCount"])

	env.app.Leaderboard = failingBoard{}
	code, _ = getJSON(t, env.app.TopSpenders, "/api/roblox/top-spenders")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func postJSON(t *testing.T, h http.HandlerFunc, target, body string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return rr.Code, decode(t, rr)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	code, out := postJSON(t, env.app.Register, "/api/register", `{"username":" moonzet16 "}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AB12CD", out["code"])
	assert.Equal(t, "moonzet16", out["username"])

	code, out = postJSON(t, env.app.Register, "/api/register", `{"robloxUsername":"MOONZET16"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AB12CD", out["code"], "existing identity keeps its code")
	assert.Equal(t, "moonzet16", out["username"], "reuse echoes the stored identity")

	code, _ = postJSON(t, env.app.Register, "/api/register", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = postJSON(t, env.app.Register, "/api/register", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = getJSON(t, env.app.RegisterStatus, "/api/register")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestDisplayNames(t *testing.T) {
	env := newTestEnv(t, nil)

	code, _ := postJSON(t, env.app.RegisterDisplayName, "/api/roblox/register-displayname", `{"username":"moonzet16"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out := postJSON(t, env.app.RegisterDisplayName, "/api/roblox/register-displayname", `{"username":"moonzet16","displayName":"Bulan"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bulan", out["displayName"])

	code, out = getJSON(t, env.app.DisplayNames, "/api/roblox/register-displayname?username=moonzet16")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bulan", out["displayName"])

	code, _ = getJSON(t, env.app.DisplayNames, "/api/roblox/register-displayname?username=ghost")
	assert.Equal(t, http.StatusNotFound, code)

	code, out = getJSON(t, env.app.DisplayNames, "/api/roblox/register-displayname")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, map[string]any{"moonzet16": "Bulan"}, out["displayNames"])
}

func TestDebugDonations(t *testing.T) {
	env := newTestEnv(t, nil)
	seedDonations(t, env)

	code, out := getJSON(t, env.app.DebugDonations, "/api/debug/donations?limit=2")
	require.Equal(t, http.StatusOK, code)
	stats := out["stats"].(map[string]any)
	assert.Equal(t, float64(4), stats["total"])
	assert.Equal(t, float64(3), stats["withMatchedUsername"])
	assert.Equal(t, float64(3), stats["uniqueSpenders"])
	assert.Len(t, out["latestDonations"].([]any), 2)
	assert.Len(t, out["topSpenders"].([]any), 3)
}

func TestSimulateDonation(t *testing.T) {
	env := newTestEnv(t, nil)

	code, out := getJSON(t, env.app.SimulateDonation, "/api/test/simulate-donation?donor=moon&amount=2000&username=PlayerOne&platform=saweria")
	require.Equal(t, http.StatusOK, code)
	donation := out["donation"].(map[string]any)
	assert.Equal(t, "PlayerOne", donation["matchedUsername"])
	assert.Equal(t, "explicit", donation["matchMethod"])
	assert.Equal(t, float64(2000), donation["amount"])

	code, _ = getJSON(t, env.app.SimulateDonation, "/api/test/simulate-donation?amount=-5")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDiscordEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	seedDonations(t, env)

	code, out := getJSON(t, env.app.DiscordTest, "/api/discord/test")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, out["ok"])

	var (
		mu     sync.Mutex
		posted []notify.WebhookPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		posted = append(posted, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	env.app.Discord = notify.NewDiscord(srv.URL, time.Second)

	code, _ = getJSON(t, env.app.DiscordTest, "/api/discord/test")
	require.Equal(t, http.StatusOK, code)

	code, _ = postJSON(t, env.app.DiscordLog, "/api/discord/log", `{"type":"warning","title":"Deploy","description":"rolled out"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = postJSON(t, env.app.DiscordLog, "/api/discord/log", `{"content":"plain"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = postJSON(t, env.app.DiscordLog, "/api/discord/log", `{"type":"info"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = getJSON(t, env.app.DiscordStats, "/api/discord/stats?period=24h")
	require.Equal(t, http.StatusOK, code)
	stats := out["stats"].(map[string]any)
	assert.Equal(t, float64(4), stats["totalDonations"])
	assert.Equal(t, float64(75), stats["matchRate"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posted, 4)
	assert.Equal(t, 0xf39c12, posted[1].Embeds[0].Color)
	assert.Equal(t, "plain", posted[2].Content)
	assert.Contains(t, posted[3].Embeds[0].Title, "24 JAM TERAKHIR")
}
