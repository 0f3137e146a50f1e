// Package billing connects organizations to the payment provider: customer
// creation, hosted checkout and portal sessions, and subscription webhooks.
package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

// CheckoutRequest describes a hosted checkout for one organization.
type CheckoutRequest struct {
	OrganizationID uuid.UUID
	CustomerID     string
	PriceID        string
	Plan           string
	SuccessURL     string
	CancelURL      string
}

// Provider is the payment provider collaborator.
type Provider interface {
	CreateCustomer(ctx context.Context, orgID uuid.UUID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}
