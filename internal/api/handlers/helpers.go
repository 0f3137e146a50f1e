// Package handlers maps HTTP requests onto the domain services.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/api/middleware"
	"github.com/hugh/pipedesk/internal/api/validation"
	"github.com/hugh/pipedesk/pkg/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// writeError maps a service error to its status. Unclassified errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: apperr.Message(err)})
}

// decode reads a JSON body into v and validates it. On failure the 400
// response has been written and decode returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}

	if details := validation.Check(v); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return false
	}
	return true
}

// urlID parses a UUID path parameter. A malformed id cannot name an
// existing entity, so it is answered with notFound.
func urlID(w http.ResponseWriter, r *http.Request, name string, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: apperr.Message(notFound)})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter.
func queryID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{name: "Invalid UUID format"},
		})
		return nil, false
	}
	return &id, true
}

// bodyID parses a UUID taken from a request body. On failure the 400
// response has been written and bodyID returns false.
func bodyID(w http.ResponseWriter, field, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{field: "Invalid UUID format"},
		})
		return uuid.Nil, false
	}
	return id, true
}

// principal is set by middleware.OrgAccess on every organization route.
func principal(r *http.Request) *access.Principal {
	return middleware.GetPrincipal(r.Context())
}
