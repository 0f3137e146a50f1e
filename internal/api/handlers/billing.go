package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/api/dto"
	"github.com/hugh/pipedesk/internal/api/middleware"
	"github.com/hugh/pipedesk/internal/billing"
)

// maxWebhookBytes matches the payload limit Stripe documents for events.
const maxWebhookBytes = 65536

type BillingHandler struct {
	billing *billing.Service
	guard   *access.Guard
	logger  *slog.Logger
}

func NewBillingHandler(billingService *billing.Service, guard *access.Guard, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: billingService, guard: guard, logger: logger}
}

// CreateCheckoutSession handles POST /api/billing/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutSessionRequest
	if !decode(w, r, &req) {
		return
	}
	orgID, ok := bodyID(w, "organizationId", req.OrganizationID)
	if !ok {
		return
	}

	p, err := middleware.ResolvePrincipal(r.Context(), h.guard, orgID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), p, billing.CheckoutInput{
		PriceID:    req.PriceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}

// CreatePortalSession handles POST /api/billing/create-portal-session
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req dto.PortalSessionRequest
	if !decode(w, r, &req) {
		return
	}
	orgID, ok := bodyID(w, "organizationId", req.OrganizationID)
	if !ok {
		return
	}

	p, err := middleware.ResolvePrincipal(r.Context(), h.guard, orgID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	url, err := h.billing.CreatePortalSession(r.Context(), p, req.ReturnURL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}

// Webhook handles POST /api/billing/webhook. It is authenticated by the
// Stripe-Signature header, not by a session.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
