package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/stripe/stripe-go/v81"
)

var (
	ErrUnknownPrice     = apperr.Validation("Unknown price")
	ErrURLRequired      = apperr.Validation("Redirect URLs are required")
	ErrNoBillingAccount = apperr.Validation("Organization has no billing account")
	ErrInvalidSignature = apperr.Validation("Invalid webhook signature")
)

// Subscription statuses stored locally.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

type CheckoutInput struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type Service struct {
	store    *store.Store
	provider Provider
	audit    *audit.Recorder
	cfg      config.BillingConfig
	logger   *slog.Logger
}

func NewService(st *store.Store, provider Provider, recorder *audit.Recorder, cfg config.BillingConfig, logger *slog.Logger) *Service {
	return &Service{store: st, provider: provider, audit: recorder, cfg: cfg, logger: logger}
}

// CreateCheckoutSession returns the hosted checkout URL for upgrading the
// caller's organization to the plan behind PriceID.
func (s *Service) CreateCheckoutSession(ctx context.Context, p *access.Principal, in CheckoutInput) (string, error) {
	if err := p.Require(access.ResourceBilling, access.ActionUpdate); err != nil {
		return "", err
	}
	plan, ok := s.cfg.PlanForPrice(in.PriceID)
	if !ok {
		return "", ErrUnknownPrice
	}
	if strings.TrimSpace(in.SuccessURL) == "" || strings.TrimSpace(in.CancelURL) == "" {
		return "", ErrURLRequired
	}

	customerID, err := s.ensureCustomer(ctx, p)
	if err != nil {
		return "", err
	}

	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		OrganizationID: p.OrganizationID,
		CustomerID:     customerID,
		PriceID:        in.PriceID,
		Plan:           plan,
		SuccessURL:     in.SuccessURL,
		CancelURL:      in.CancelURL,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "Payment provider request failed", err)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionCheckout,
		Entity:         audit.EntitySubscription,
		Metadata:       map[string]any{"priceId": in.PriceID, "plan": plan},
	})
	return url, nil
}

// CreatePortalSession returns the self-service portal URL. The organization
// must already have a billing customer.
func (s *Service) CreatePortalSession(ctx context.Context, p *access.Principal, returnURL string) (string, error) {
	if err := p.Require(access.ResourceBilling, access.ActionUpdate); err != nil {
		return "", err
	}
	if strings.TrimSpace(returnURL) == "" {
		return "", ErrURLRequired
	}

	org, err := s.store.GetOrganization(ctx, p.OrganizationID)
	if err != nil {
		return "", orgNotFound(err)
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		return "", ErrNoBillingAccount
	}

	url, err := s.provider.CreatePortalSession(ctx, *org.StripeCustomerID, returnURL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "Payment provider request failed", err)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionPortal,
		Entity:         audit.EntitySubscription,
	})
	return url, nil
}

// ensureCustomer returns the organization's billing customer, creating one
// for the organization on first use. Customers are never shared between
// organizations.
func (s *Service) ensureCustomer(ctx context.Context, p *access.Principal) (string, error) {
	org, err := s.store.GetOrganization(ctx, p.OrganizationID)
	if err != nil {
		return "", orgNotFound(err)
	}
	if org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		return *org.StripeCustomerID, nil
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return "", fmt.Errorf("loading user: %w", err)
	}

	customerID, err := s.provider.CreateCustomer(ctx, org.ID, user.Email, org.Name)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "Payment provider request failed", err)
	}

	if err := s.store.UpdateOrganization(ctx, org.ID, map[string]any{"stripe_customer_id": customerID}); err != nil {
		return "", fmt.Errorf("storing billing customer: %w", err)
	}

	// The user keeps the first customer they created as a profile attribute.
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		if err := s.store.SetUserStripeCustomer(ctx, user.ID, customerID); err != nil {
			s.logger.Warn("failed to store user billing customer", "user_id", user.ID, "error", err)
		}
	}
	return customerID, nil
}

// HandleWebhook verifies and applies a payment provider event. Events for
// unknown customers and unhandled types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", "error", err)
		return ErrInvalidSignature
	}
	if event.Data == nil {
		return apperr.Validation("Webhook event has no data")
	}

	s.logger.Info("processing billing webhook", "event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		return s.applySubscription(ctx, string(event.Type), &sub, false)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		return s.applySubscription(ctx, string(event.Type), &sub, true)
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("unmarshal checkout session: %w", err)
		}
		return s.applyCheckout(ctx, string(event.Type), &sess)
	default:
		s.logger.Debug("unhandled webhook event type", "event_type", event.Type)
		return nil
	}
}

func (s *Service) applySubscription(ctx context.Context, eventType string, sub *stripe.Subscription, deleted bool) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	org, err := s.findOrganization(ctx, sub.Metadata[metaOrganizationID], customerID)
	if err != nil {
		return err
	}
	if org == nil {
		s.logger.Warn("no organization for subscription", "subscription_id", sub.ID, "customer_id", customerID)
		return nil
	}

	plan := models.PlanFree
	status := StatusCanceled
	if !deleted {
		plan = s.planFor(sub, org.Plan)
		status = string(sub.Status)
	}

	orgFields := map[string]any{"plan": plan}
	if deleted {
		orgFields["stripe_subscription_id"] = nil
		orgFields["trial_ends_at"] = nil
	} else {
		orgFields["stripe_subscription_id"] = sub.ID
		if sub.TrialEnd > 0 {
			orgFields["trial_ends_at"] = time.Unix(sub.TrialEnd, 0).UTC()
		}
	}
	if customerID != "" && org.StripeCustomerID == nil {
		orgFields["stripe_customer_id"] = customerID
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	if err := s.saveState(ctx, org.ID, orgFields, plan, status, periodEnd); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: org.ID,
		Action:         audit.ActionWebhook,
		Entity:         audit.EntitySubscription,
		EntityID:       sub.ID,
		Metadata:       map[string]any{"event": eventType, "plan": plan, "status": status},
	})
	return nil
}

func (s *Service) applyCheckout(ctx context.Context, eventType string, sess *stripe.CheckoutSession) error {
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	org, err := s.findOrganization(ctx, sess.ClientReferenceID, customerID)
	if err != nil {
		return err
	}
	if org == nil {
		s.logger.Warn("no organization for checkout session", "session_id", sess.ID, "customer_id", customerID)
		return nil
	}

	plan := org.Plan
	if p := models.Plan(sess.Metadata[metaPlan]); p.Valid() {
		plan = p
	}

	orgFields := map[string]any{"plan": plan}
	if customerID != "" {
		orgFields["stripe_customer_id"] = customerID
	}
	subscriptionID := ""
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		subscriptionID = sess.Subscription.ID
		orgFields["stripe_subscription_id"] = subscriptionID
	}

	if err := s.saveState(ctx, org.ID, orgFields, plan, StatusActive, nil); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: org.ID,
		Action:         audit.ActionWebhook,
		Entity:         audit.EntitySubscription,
		EntityID:       subscriptionID,
		Metadata:       map[string]any{"event": eventType, "plan": plan, "status": StatusActive},
	})
	return nil
}

// saveState updates the organization and its subscription together.
func (s *Service) saveState(ctx context.Context, orgID uuid.UUID, orgFields map[string]any, plan models.Plan, status string, periodEnd *time.Time) error {
	return s.store.WithOrgTx(ctx, orgID, func(tx *store.Store) error {
		if err := tx.UpdateOrganization(ctx, orgID, orgFields); err != nil {
			return fmt.Errorf("updating organization: %w", err)
		}

		sub, err := tx.GetSubscription(ctx, orgID)
		if errors.Is(err, store.ErrNotFound) {
			sub = &models.Subscription{OrganizationID: orgID}
		} else if err != nil {
			return err
		}
		sub.Plan = plan
		sub.Status = status
		if periodEnd != nil {
			sub.CurrentPeriodEnd = periodEnd
		}
		return tx.SaveSubscription(ctx, sub)
	})
}

// findOrganization prefers the organization id we attached to the Stripe
// object, then the customer id. A nil organization means neither matched.
func (s *Service) findOrganization(ctx context.Context, orgRef, customerID string) (*models.Organization, error) {
	if id, err := uuid.Parse(orgRef); err == nil {
		org, err := s.store.GetOrganization(ctx, id)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if customerID == "" {
		return nil, nil
	}

	org, err := s.store.GetOrganizationByStripeCustomer(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return org, err
}

// planFor maps the subscription's first price to a plan, falling back to
// the plan recorded in metadata and then to the current plan.
func (s *Service) planFor(sub *stripe.Subscription, current models.Plan) models.Plan {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			if plan, ok := s.cfg.PlanForPrice(item.Price.ID); ok {
				return models.Plan(plan)
			}
		}
	}
	if p := models.Plan(sub.Metadata[metaPlan]); p.Valid() {
		return p
	}
	return current
}

func orgNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return access.ErrOrganizationNotFound
	}
	return err
}
