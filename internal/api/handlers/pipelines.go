package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/crm"
)

type PipelineHandler struct {
	crm    *crm.Service
	logger *slog.Logger
}

func NewPipelineHandler(crmService *crm.Service, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{crm: crmService, logger: logger}
}

// List handles GET /api/organizations/{orgId}/pipelines
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.crm.ListPipelines(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelines)
}

// Create handles POST /api/organizations/{orgId}/pipelines
func (h *PipelineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePipelineRequest
	if !decode(w, r, &req) {
		return
	}

	pipeline, err := h.crm.CreatePipeline(r.Context(), principal(r), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pipeline)
}

// Get handles GET /api/organizations/{orgId}/pipelines/{pipelineId}
func (h *PipelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "pipelineId", crm.ErrPipelineNotFound)
	if !ok {
		return
	}

	pipeline, err := h.crm.GetPipeline(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// Update handles PUT /api/organizations/{orgId}/pipelines/{pipelineId}
func (h *PipelineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "pipelineId", crm.ErrPipelineNotFound)
	if !ok {
		return
	}

	var req dto.UpdatePipelineRequest
	if !decode(w, r, &req) {
		return
	}

	pipeline, err := h.crm.UpdatePipeline(r.Context(), principal(r), id, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// Delete handles DELETE /api/organizations/{orgId}/pipelines/{pipelineId}
// and cascades to its stages, leads and comments.
func (h *PipelineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "pipelineId", crm.ErrPipelineNotFound)
	if !ok {
		return
	}

	if err := h.crm.DeletePipeline(r.Context(), principal(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}
