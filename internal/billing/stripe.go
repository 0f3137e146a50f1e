package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Metadata keys attached to Stripe objects.
const (
	metaOrganizationID = "organization_id"
	metaPlan           = "plan"
)

// StripeProvider implements Provider with the Stripe API.
type StripeProvider struct {
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeProvider configures the global Stripe key.
func NewStripeProvider(cfg config.BillingConfig, logger *slog.Logger) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey
	return &StripeProvider{webhookSecret: cfg.StripeWebhookSecret, logger: logger}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, orgID uuid.UUID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(metaOrganizationID, orgID.String())

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}

	p.logger.Info("created stripe customer", "org_id", orgID, "customer_id", cust.ID)
	return cust.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.OrganizationID.String()),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metaOrganizationID: req.OrganizationID.String(),
				metaPlan:           req.Plan,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaOrganizationID, req.OrganizationID.String())
	params.AddMetadata(metaPlan, req.Plan)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

var _ Provider = (*StripeProvider)(nil)
