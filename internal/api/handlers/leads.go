package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/api/validation"
	"github.com/hugh/pipedesk/internal/crm"
	"github.com/hugh/pipedesk/internal/store"
)

type LeadHandler struct {
	crm    *crm.Service
	logger *slog.Logger
}

func NewLeadHandler(crmService *crm.Service, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{crm: crmService, logger: logger}
}

// List handles GET /api/organizations/{orgId}/leads?stageId=&pipelineId=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	stageID, ok := queryID(w, r, "stageId")
	if !ok {
		return
	}
	pipelineID, ok := queryID(w, r, "pipelineId")
	if !ok {
		return
	}

	leads, err := h.crm.ListLeads(r.Context(), principal(r), store.LeadFilter{
		StageID:    stageID,
		PipelineID: pipelineID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

// Create handles POST /api/organizations/{orgId}/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLeadRequest
	if !decode(w, r, &req) {
		return
	}
	stageID, ok := bodyID(w, "stageId", req.StageID)
	if !ok {
		return
	}

	lead, err := h.crm.CreateLead(r.Context(), principal(r), crm.LeadInput{
		StageID: stageID,
		Name:    req.Name,
		Email:   req.Email,
		Source:  req.Source,
		Notes:   sanitized(req.Notes),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// Get handles GET /api/organizations/{orgId}/leads/{leadId}
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	lead, err := h.crm.GetLead(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Update handles PUT /api/organizations/{orgId}/leads/{leadId}
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	var req dto.UpdateLeadRequest
	if !decode(w, r, &req) {
		return
	}

	lead, err := h.crm.UpdateLead(r.Context(), principal(r), id, crm.LeadUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Source: req.Source,
		Notes:  sanitized(req.Notes),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Move handles POST /api/organizations/{orgId}/leads/{leadId}/move
func (h *LeadHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	var req dto.MoveLeadRequest
	if !decode(w, r, &req) {
		return
	}
	stageID, ok := bodyID(w, "stageId", req.StageID)
	if !ok {
		return
	}

	lead, err := h.crm.MoveLead(r.Context(), principal(r), id, stageID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/organizations/{orgId}/leads/{leadId}
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	if err := h.crm.DeleteLead(r.Context(), principal(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// ListComments handles GET /api/organizations/{orgId}/leads/{leadId}/comments
func (h *LeadHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	comments, err := h.crm.ListComments(r.Context(), principal(r), leadID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// CreateComment handles POST /api/organizations/{orgId}/leads/{leadId}/comments
func (h *LeadHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if !decode(w, r, &req) {
		return
	}

	comment, err := h.crm.CreateComment(r.Context(), principal(r), leadID, validation.SanitizeString(req.Body))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// DeleteComment handles DELETE /api/organizations/{orgId}/leads/{leadId}/comments/{commentId}
func (h *LeadHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	leadID, ok := urlID(w, r, "leadId", crm.ErrLeadNotFound)
	if !ok {
		return
	}
	commentID, ok := urlID(w, r, "commentId", crm.ErrCommentNotFound)
	if !ok {
		return
	}

	if err := h.crm.DeleteComment(r.Context(), principal(r), leadID, commentID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

func sanitized(s *string) *string {
	if s == nil {
		return nil
	}
	clean := validation.SanitizeString(*s)
	return &clean
}
