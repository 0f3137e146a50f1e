package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/settings"
)

type SettingsHandler struct {
	settings *settings.Service
	logger   *slog.Logger
}

func NewSettingsHandler(settingsService *settings.Service, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settingsService, logger: logger}
}

// List handles GET /api/organizations/{orgId}/settings
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// Get handles GET /api/organizations/{orgId}/settings/{key}
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	setting, err := h.settings.Get(r.Context(), principal(r), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// Put handles PUT /api/organizations/{orgId}/settings/{key}
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req dto.PutSettingRequest
	if !decode(w, r, &req) {
		return
	}

	setting, err := h.settings.Put(r.Context(), principal(r), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// Delete handles DELETE /api/organizations/{orgId}/settings/{key}
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Delete(r.Context(), principal(r), chi.URLParam(r, "key")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}
