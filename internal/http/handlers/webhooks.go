package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"donationhub/internal/domain"
	"donationhub/internal/ingest"
	"donationhub/internal/middleware"
)

const maxWebhookBody = 1 << 20

// Webhook accepts one donation delivery from a payment platform.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	platform, ok := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		a.error(w, http.StatusNotFound, "unknown platform")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Failed to parse body")
		return
	}

	res, err := a.Pipeline.Ingest(r.Context(), ingest.Delivery{
		Platform: platform,
		Body:     body,
		Token:    ingest.TokenFromRequest(r),
	})
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "unknown platform")
		return
	case err != nil:
		a.Logger.Error().Err(err).
			Str("platform", string(platform)).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("country", middleware.CountryFromContext(r.Context())).
			Msg("webhook delivery failed")
		a.error(w, http.StatusInternalServerError, "failed to record donation")
		return
	}

	if res.Duplicate {
		a.json(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
		return
	}
	resp := map[string]any{"ok": true, "donation": toDonationDTO(res.Record)}
	if res.Degraded {
		resp["degraded"] = true
	}
	a.json(w, http.StatusOK, resp)
}

// WebhookStatus lets platform dashboards probe the endpoint.
func (a *App) WebhookStatus(w http.ResponseWriter, r *http.Request) {
	platform, ok := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		a.error(w, http.StatusNotFound, "unknown platform")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "platform": platform})
}
