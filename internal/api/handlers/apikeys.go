package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/apikeys"
)

type APIKeyHandler struct {
	keys   *apikeys.Service
	logger *slog.Logger
}

func NewAPIKeyHandler(keys *apikeys.Service, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: logger}
}

// List handles GET /api/organizations/{orgId}/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// Create handles POST /api/organizations/{orgId}/api-keys. The response is
// the only one that carries the plaintext secret.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAPIKeyRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.keys.Create(r.Context(), principal(r), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete handles DELETE /api/organizations/{orgId}/api-keys/{keyId}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "keyId", apikeys.ErrKeyNotFound)
	if !ok {
		return
	}

	if err := h.keys.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}
