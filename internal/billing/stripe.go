// Package billing wraps the Stripe API calls used for subscriptions, account
// top-ups and webhook verification.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the Stripe operations the application needs.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(email, name string) (string, error)

	// CreateCheckoutSession creates a monthly subscription Checkout session
	// priced inline from the site's product and returns its URL.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// ChargeCard confirms a PaymentIntent for amountCents immediately.
	// A declined card is returned as *CardError.
	ChargeCard(customerID, paymentMethodID string, amountCents int64) (string, error)

	// ListPayments returns the customer's PaymentIntents, newest first.
	ListPayments(customerID string) ([]Payment, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	ProductID  string
	PriceCents int64
	SuccessURL string
	CancelURL  string
}

// Payment is one entry of the top-up history.
type Payment struct {
	Date        time.Time `json:"date"`
	AmountCents int64     `json:"-"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
}

// CardError is a declined or otherwise rejected card.
// UserMessage is safe to show to the customer.
type CardError struct {
	UserMessage string
	Err         error
}

func (e *CardError) Error() string { return "card error: " + e.UserMessage }
func (e *CardError) Unwrap() error { return e.Err }

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
	}
}

func (s *stripeService) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Product:    stripe.String(p.ProductID),
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(p.PriceCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) ChargeCard(customerID, paymentMethodID string, amountCents int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return "", &CardError{UserMessage: stripeErr.Msg, Err: err}
		}
		return "", fmt.Errorf("stripe create payment intent: %w", err)
	}
	return pi.ID, nil
}

func (s *stripeService) ListPayments(customerID string) ([]Payment, error) {
	params := &stripe.PaymentIntentListParams{
		Customer: stripe.String(customerID),
	}
	params.Limit = stripe.Int64(100)

	var out []Payment
	iter := paymentintent.List(params)
	for iter.Next() {
		pi := iter.PaymentIntent()
		out = append(out, Payment{
			Date:        time.Unix(pi.Created, 0).UTC(),
			AmountCents: pi.Amount,
			Amount:      float64(pi.Amount) / 100,
			Status:      string(pi.Status),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list payment intents: %w", err)
	}
	return out, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

// SubscriptionEvent is the part of a customer.subscription.* event the
// application stores.
type SubscriptionEvent struct {
	SubscriptionID   string
	CustomerID       string
	ProductID        string
	CurrentPeriodEnd time.Time
	Raw              json.RawMessage
}

// ParseSubscriptionEvent extracts the subscription fields from event.
func ParseSubscriptionEvent(event stripe.Event) (*SubscriptionEvent, error) {
	if event.Data == nil {
		return nil, errors.New("event has no data")
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, fmt.Errorf("subscription %s has no customer", sub.ID)
	}

	out := &SubscriptionEvent{
		SubscriptionID:   sub.ID,
		CustomerID:       sub.Customer.ID,
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		Raw:              event.Data.Raw,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil && price.Product != nil {
			out.ProductID = price.Product.ID
		}
	}
	return out, nil
}
