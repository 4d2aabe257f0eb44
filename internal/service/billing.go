package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	"github.com/stripe/stripe-go/v79"
)

// WebhookProviderStripe is the webhook_events provider for Stripe events.
const WebhookProviderStripe = "stripe"

// =============================================================================
// Interface Definition
// =============================================================================

// BillingService covers subscriptions, top-ups and Stripe webhooks.
type BillingService interface {
	// ActiveSubscription returns the user's active subscription, through a
	// personal account or a team the user owns. Returns nil when none.
	ActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// RequireActiveSubscription returns domain.EFORBIDDEN unless the user
	// has an active subscription.
	RequireActiveSubscription(ctx context.Context, userID uuid.UUID) error

	// AddValue charges the card and credits the personal account balance.
	// A declined card returns domain.EINVALID with Stripe's user message.
	AddValue(ctx context.Context, user *domain.User, paymentMethodID string, amountCents int64) error

	// History lists the user's top-up payments.
	History(ctx context.Context, user *domain.User) ([]billing.Payment, error)

	// CreateCheckout starts a subscription checkout priced from attrs.
	CreateCheckout(ctx context.Context, user *domain.User, attrs domain.SiteAttributes, successURL, cancelURL string) (string, error)

	// CreatePortal opens the Stripe customer portal.
	// Returns domain.EINVALID when the account has no Stripe customer.
	CreatePortal(ctx context.Context, user *domain.User, returnURL string) (string, error)

	// HandleStripeEvent applies a verified Stripe event. Replayed event ids
	// are no-ops.
	HandleStripeEvent(ctx context.Context, event stripe.Event) error
}

// =============================================================================
// Implementation
// =============================================================================

type billingService struct {
	store  repository.Store
	stripe billing.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewBillingService creates a new BillingService. stripeSvc may be nil when
// Stripe is not configured; the Stripe-backed operations then return
// domain.ENOTIMPL.
func NewBillingService(store repository.Store, stripeSvc billing.Service, logger *slog.Logger) BillingService {
	return &billingService{
		store:  store,
		stripe: stripeSvc,
		logger: logger,
		now:    time.Now,
	}
}

// ActiveSubscription looks up the user's active subscription.
func (s *billingService) ActiveSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	const op = "billing.active_subscription"

	sub, err := s.store.GetActiveSubscriptionForUser(ctx, repository.GetActiveSubscriptionForUserParams{
		UserID: uuid.NullUUID{UUID: userID, Valid: true},
		Now:    s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}
	return repoSubscriptionToDomain(sub), nil
}

// RequireActiveSubscription gates paid endpoints.
func (s *billingService) RequireActiveSubscription(ctx context.Context, userID uuid.UUID) error {
	const op = "billing.require_active_subscription"

	sub, err := s.ActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if !sub.IsActive(s.now()) {
		return domain.Forbidden(op, domain.ActiveSubscriptionDetail)
	}
	return nil
}

// personalAccount loads the user's own account.
func (s *billingService) personalAccount(ctx context.Context, op string, userID uuid.UUID) (*domain.Account, error) {
	row, err := s.store.GetAccountByUserID(ctx, uuid.NullUUID{UUID: userID, Valid: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "account", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to load account")
	}
	account, err := repoAccountToDomain(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load account")
	}
	return account, nil
}

// ensureCustomer returns the account's Stripe customer, creating one when
// registration could not.
func (s *billingService) ensureCustomer(ctx context.Context, op string, user *domain.User, account *domain.Account) (string, error) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, nil
	}

	customerID, err := s.stripe.CreateCustomer(user.Email, user.FullName())
	if err != nil {
		return "", domain.Wrap(err, domain.EPAYMENT, op, "Failed to create Stripe customer.")
	}
	err = s.store.SetAccountStripeCustomerID(ctx, repository.SetAccountStripeCustomerIDParams{
		ID:               account.ID,
		StripeCustomerID: domain.ToNullString(customerID),
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to save stripe customer")
	}
	account.StripeCustomerID = customerID
	return customerID, nil
}

// AddValue charges and credits in that order; a failed charge leaves the
// balance untouched.
func (s *billingService) AddValue(ctx context.Context, user *domain.User, paymentMethodID string, amountCents int64) error {
	const op = "billing.add_value"

	if s.stripe == nil {
		return domain.NotConfigured(op, "Stripe")
	}
	if paymentMethodID == "" {
		return domain.Invalid(op, "payment_method_id is required.")
	}
	if err := billing.ValidateTopUp(op, amountCents); err != nil {
		return err
	}

	account, err := s.personalAccount(ctx, op, user.ID)
	if err != nil {
		return err
	}
	customerID, err := s.ensureCustomer(ctx, op, user, account)
	if err != nil {
		return err
	}

	paymentID, err := s.stripe.ChargeCard(customerID, paymentMethodID, amountCents)
	if err != nil {
		var cardErr *billing.CardError
		if errors.As(err, &cardErr) {
			return domain.Wrap(err, domain.EINVALID, op, cardErr.UserMessage)
		}
		return domain.Wrap(err, domain.EPAYMENT, op, "Payment could not be processed.")
	}

	if _, err := s.store.AddAccountBalance(ctx, repository.AddAccountBalanceParams{
		ID:           account.ID,
		BalanceCents: amountCents,
	}); err != nil {
		// The card was charged; log loudly so support can reconcile.
		s.logger.Error("charged card but failed to credit balance",
			"user_id", user.ID,
			"account_id", account.ID,
			"payment_intent", paymentID,
			"amount_cents", amountCents,
			"error", err,
		)
		return domain.Internal(err, op, "failed to credit balance")
	}

	s.logger.Info("account balance credited",
		"user_id", user.ID,
		"account_id", account.ID,
		"payment_intent", paymentID,
		"amount_cents", amountCents,
	)
	return nil
}

// History lists PaymentIntents of the user's customer.
func (s *billingService) History(ctx context.Context, user *domain.User) ([]billing.Payment, error) {
	const op = "billing.history"

	if s.stripe == nil {
		return nil, domain.NotConfigured(op, "Stripe")
	}

	account, err := s.personalAccount(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}
	if account.StripeCustomerID == "" {
		return []billing.Payment{}, nil
	}

	payments, err := s.stripe.ListPayments(account.StripeCustomerID)
	if err != nil {
		return nil, domain.Wrap(err, domain.EPAYMENT, op, "Failed to load payment history.")
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	return payments, nil
}

// CreateCheckout creates a subscription Checkout session.
func (s *billingService) CreateCheckout(ctx context.Context, user *domain.User, attrs domain.SiteAttributes, successURL, cancelURL string) (string, error) {
	const op = "billing.create_checkout"

	if s.stripe == nil {
		return "", domain.NotConfigured(op, "Stripe")
	}

	account, err := s.personalAccount(ctx, op, user.ID)
	if err != nil {
		return "", err
	}
	customerID, err := s.ensureCustomer(ctx, op, user, account)
	if err != nil {
		return "", err
	}

	url, err := s.stripe.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID: customerID,
		ProductID:  attrs.StripeProductID,
		PriceCents: attrs.StripePriceCents,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		s.logger.Warn("checkout session failed", "user_id", user.ID, "error", err)
		return "", domain.Wrap(err, domain.EINVALID, op, "Failed to create checkout session")
	}
	return url, nil
}

// CreatePortal creates a billing portal session.
func (s *billingService) CreatePortal(ctx context.Context, user *domain.User, returnURL string) (string, error) {
	const op = "billing.create_portal"

	if s.stripe == nil {
		return "", domain.NotConfigured(op, "Stripe")
	}

	account, err := s.personalAccount(ctx, op, user.ID)
	if err != nil {
		return "", err
	}
	if account.StripeCustomerID == "" {
		return "", domain.Invalid(op, "No Stripe customer found")
	}

	url, err := s.stripe.CreatePortalSession(account.StripeCustomerID, returnURL)
	if err != nil {
		s.logger.Warn("portal session failed", "user_id", user.ID, "error", err)
		return "", domain.Wrap(err, domain.EINVALID, op, "Failed to create portal session")
	}
	return url, nil
}

// =============================================================================
// Webhooks
// =============================================================================

// HandleStripeEvent records the event id and applies it in one transaction,
// so a failure leaves the event unrecorded for Stripe's retry.
func (s *billingService) HandleStripeEvent(ctx context.Context, event stripe.Event) error {
	const op = "billing.handle_stripe_event"

	eventType := string(event.Type)

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
	default:
		s.logger.Debug("unhandled stripe event", "event_type", eventType, "event_id", event.ID)
		metrics.WebhookEvents.WithLabelValues(WebhookProviderStripe, eventType, "ignored").Inc()
		return nil
	}

	parsed, err := billing.ParseSubscriptionEvent(event)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(WebhookProviderStripe, eventType, "malformed").Inc()
		return domain.Wrap(err, domain.EINVALID, op, "Invalid subscription payload")
	}

	outcome, action := "applied", ""
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		n, err := q.RecordWebhookEvent(ctx, repository.RecordWebhookEventParams{
			Provider:  WebhookProviderStripe,
			EventID:   event.ID,
			EventType: eventType,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			outcome = "duplicate"
			return nil
		}

		account, err := q.GetAccountByStripeCustomerID(ctx, domain.ToNullString(parsed.CustomerID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = "orphan"
				return nil
			}
			return err
		}

		if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			if _, err := q.ExpireSubscription(ctx, repository.ExpireSubscriptionParams{
				AccountID: account.ID,
				ExpiresAt: s.now(),
			}); err != nil {
				return err
			}
			action = "expired"
			return nil
		}

		_, err = q.UpsertSubscription(ctx, repository.UpsertSubscriptionParams{
			AccountID:         account.ID,
			Platform:          string(domain.PlatformStripe),
			ProductIdentifier: parsed.ProductID,
			ExpiresAt:         parsed.CurrentPeriodEnd,
			PlatformPayload:   pqtype.NullRawMessage{RawMessage: parsed.Raw, Valid: len(parsed.Raw) > 0},
			IsSandbox:         !event.Livemode,
		})
		if err != nil {
			return err
		}
		action = "renewed"
		return nil
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(WebhookProviderStripe, eventType, "error").Inc()
		return domain.Internal(err, op, "failed to apply stripe event")
	}

	metrics.WebhookEvents.WithLabelValues(WebhookProviderStripe, eventType, outcome).Inc()
	if action != "" {
		metrics.SubscriptionUpserts.WithLabelValues(string(domain.PlatformStripe), action).Inc()
	}

	switch outcome {
	case "orphan":
		s.logger.Warn("stripe subscription event for unknown customer",
			"event_id", event.ID,
			"event_type", eventType,
			"customer_id", parsed.CustomerID,
		)
	case "duplicate":
		s.logger.Info("stripe event already processed", "event_id", event.ID, "event_type", eventType)
	default:
		s.logger.Info("stripe subscription event applied",
			"event_id", event.ID,
			"event_type", eventType,
			"customer_id", parsed.CustomerID,
			"product_id", parsed.ProductID,
		)
	}
	return nil
}
