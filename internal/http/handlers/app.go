package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"donationhub/internal/domain"
	"donationhub/internal/ingest"
	"donationhub/internal/notify"
	"donationhub/internal/registry"
)

// App carries the dependencies shared by every handler.
type App struct {
	Pipeline    *ingest.Pipeline
	Registrar   domain.Registrar
	Ledger      domain.Ledger
	Leaderboard domain.Leaderboard
	Discord     *notify.Discord
	Logger      zerolog.Logger
	NewCode     registry.CodeFunc
	Now         func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]any{"ok": false, "error": msg})
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}
