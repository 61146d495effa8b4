package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"donationhub/internal/domain"
	"donationhub/internal/registry"
)

const maxFormBody = 64 << 10

type registerRequest struct {
	Username       string `json:"username"`
	RobloxUsername string `json:"robloxUsername"`
}

// Register binds a username to a registration code, reusing the existing code
// for a known username.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decodeLenient(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.TrimSpace(req.RobloxUsername)
	}

	reg, err := registry.Register(r.Context(), a.Registrar, username, a.NewCode)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "username required")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("identity", username).Msg("register failed")
		a.error(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if reg.Created {
		a.Logger.Info().Str("identity", reg.Identity).Str("code", reg.Code).Msg("registration created")
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "code": reg.Code, "username": reg.Identity})
}

// RegisterStatus is a liveness probe that exposes nothing about the directory.
func (a *App) RegisterStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}

type displayNameRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

func (a *App) RegisterDisplayName(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if !a.decodeLenient(w, r, &req) {
		return
	}
	err := registry.SetDisplayName(r.Context(), a.Registrar, req.Username, req.DisplayName)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "Username and displayName required")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("identity", req.Username).Msg("set display name failed")
		a.error(w, http.StatusInternalServerError, "failed to register display name")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"ok":          true,
		"username":    strings.TrimSpace(req.Username),
		"displayName": strings.TrimSpace(req.DisplayName),
		"message":     "Display name registered successfully",
	})
}

// DisplayNames returns one mapping when username is given, otherwise all.
func (a *App) DisplayNames(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		entries, err := a.Registrar.DisplayNames(r.Context())
		if err != nil {
			a.Logger.Error().Err(err).Msg("list display names failed")
			a.error(w, http.StatusInternalServerError, "Database error")
			return
		}
		names := make(map[string]string, len(entries))
		for _, e := range entries {
			names[e.Identity] = e.DisplayName
		}
		a.json(w, http.StatusOK, map[string]any{"ok": true, "displayNames": names, "count": len(names)})
		return
	}

	name, ok, err := a.Registrar.DisplayName(r.Context(), username)
	if err != nil {
		a.Logger.Error().Err(err).Str("identity", username).Msg("load display name failed")
		a.error(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !ok {
		a.error(w, http.StatusNotFound, "Display name not found for username")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "username": username, "displayName": name})
}

// decodeLenient reads a JSON object regardless of Content-Type. An empty body
// decodes to the zero value.
func (a *App) decodeLenient(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "Failed to parse body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
