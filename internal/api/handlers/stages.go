package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/crm"
)

type StageHandler struct {
	crm    *crm.Service
	logger *slog.Logger
}

func NewStageHandler(crmService *crm.Service, logger *slog.Logger) *StageHandler {
	return &StageHandler{crm: crmService, logger: logger}
}

// List handles GET /api/organizations/{orgId}/stages?pipelineId=
func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
	pipelineID, ok := queryID(w, r, "pipelineId")
	if !ok {
		return
	}

	stages, err := h.crm.ListStages(r.Context(), principal(r), pipelineID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// Create handles POST /api/organizations/{orgId}/stages
func (h *StageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateStageRequest
	if !decode(w, r, &req) {
		return
	}
	pipelineID, ok := bodyID(w, "pipelineId", req.PipelineID)
	if !ok {
		return
	}

	stage, err := h.crm.CreateStage(r.Context(), principal(r), crm.StageInput{
		PipelineID: pipelineID,
		Name:       req.Name,
		Order:      req.Order,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

// Get handles GET /api/organizations/{orgId}/stages/{stageId}
func (h *StageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "stageId", crm.ErrStageNotFound)
	if !ok {
		return
	}

	stage, err := h.crm.GetStage(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// Update handles PUT /api/organizations/{orgId}/stages/{stageId}
func (h *StageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "stageId", crm.ErrStageNotFound)
	if !ok {
		return
	}

	var req dto.UpdateStageRequest
	if !decode(w, r, &req) {
		return
	}

	stage, err := h.crm.UpdateStage(r.Context(), principal(r), id, crm.StageUpdate{
		Name:  req.Name,
		Order: req.Order,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// Delete handles DELETE /api/organizations/{orgId}/stages/{stageId}
func (h *StageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "stageId", crm.ErrStageNotFound)
	if !ok {
		return
	}

	if err := h.crm.DeleteStage(r.Context(), principal(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// Reorder handles POST /api/organizations/{orgId}/stages/reorder. Either
// every listed stage is updated or none is.
func (h *StageHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req dto.ReorderStagesRequest
	if !decode(w, r, &req) {
		return
	}

	orders := make([]crm.StageOrder, 0, len(req.StageOrders))
	for i, item := range req.StageOrders {
		id, ok := bodyID(w, fmt.Sprintf("stageOrders[%d].id", i), item.ID)
		if !ok {
			return
		}
		orders = append(orders, crm.StageOrder{ID: id, Order: *item.Order})
	}

	stages, err := h.crm.ReorderStages(r.Context(), principal(r), orders)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}
