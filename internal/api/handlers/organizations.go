package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/api/middleware"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/orgs"
)

type OrganizationHandler struct {
	orgs   *orgs.Service
	audit  *audit.Recorder
	logger *slog.Logger
}

func NewOrganizationHandler(orgService *orgs.Service, recorder *audit.Recorder, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgService, audit: recorder, logger: logger}
}

// List handles GET /api/organizations
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.orgs.ListForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrganizationRequest
	if !decode(w, r, &req) {
		return
	}

	org, err := h.orgs.Create(r.Context(), middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// Get handles GET /api/organizations/{orgId}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	overview, err := h.orgs.Overview(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// ListMembers handles GET /api/organizations/{orgId}/members
func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.orgs.ListMembers(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// InviteMember handles POST /api/organizations/{orgId}/members
func (h *OrganizationHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req dto.InviteMemberRequest
	if !decode(w, r, &req) {
		return
	}

	member, err := h.orgs.Invite(r.Context(), principal(r), req.Email, models.Role(req.Role))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// UpdateMember handles PATCH /api/organizations/{orgId}/members/{userId}
func (h *OrganizationHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "userId", orgs.ErrMemberNotFound)
	if !ok {
		return
	}

	var req dto.UpdateMemberRequest
	if !decode(w, r, &req) {
		return
	}

	member, err := h.orgs.UpdateRole(r.Context(), principal(r), userID, models.Role(req.Role))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /api/organizations/{orgId}/members/{userId}
func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "userId", orgs.ErrMemberNotFound)
	if !ok {
		return
	}

	if err := h.orgs.Remove(r.Context(), principal(r), userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

// AuditLogs handles GET /api/organizations/{orgId}/audit-logs?limit=N
func (h *OrganizationHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := p.Require(access.ResourceAuditLogs, access.ActionRead); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit := audit.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"limit": "Must be a positive integer"},
			})
			return
		}
		limit = n
	}

	logs, err := h.audit.List(r.Context(), p.OrganizationID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
