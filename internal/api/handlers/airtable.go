package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/airtable"
	"github.com/hugh/pipedesk/internal/api/dto"
)

type AirtableHandler struct {
	airtable *airtable.Service
	logger   *slog.Logger
}

func NewAirtableHandler(airtableService *airtable.Service, logger *slog.Logger) *AirtableHandler {
	return &AirtableHandler{airtable: airtableService, logger: logger}
}

// Test handles POST /api/organizations/{orgId}/airtable/test
func (h *AirtableHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req dto.AirtableTestRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.airtable.Test(r.Context(), principal(r), airtable.Input{
		APIKey: req.APIKey,
		BaseID: req.BaseID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Sync handles POST /api/organizations/{orgId}/airtable/sync
func (h *AirtableHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req dto.AirtableSyncRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.airtable.Sync(r.Context(), principal(r), airtable.Input{
		APIKey: req.APIKey,
		BaseID: req.BaseID,
	}, req.Direction)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
