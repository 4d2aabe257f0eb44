package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func subscriptionEvent(id string, typ stripe.EventType, customer string, periodEnd int64) stripe.Event {
	raw := fmt.Sprintf(`{
		"id": "sub_1",
		"object": "subscription",
		"customer": %q,
		"current_period_end": %d,
		"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_1", "product": "prod_pro"}}]}
	}`, customer, periodEnd)
	return stripe.Event{
		ID:   id,
		Type: typ,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func newBillingFixture(t *testing.T) (*fakeStore, *billingService, repository.Account) {
	t.Helper()
	store := newFakeStore()
	userID := uuid.New()
	account := store.addAccount(uuid.NullUUID{UUID: userID, Valid: true}, uuid.NullUUID{}, "cus_123")
	svc := NewBillingService(store, &fakeStripe{}, discardLogger()).(*billingService)
	return store, svc, account
}

// =============================================================================
// Stripe webhook
// =============================================================================

func TestHandleStripeEvent_UpsertsSubscription(t *testing.T) {
	store, svc, account := newBillingFixture(t)
	periodEnd := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	err := svc.HandleStripeEvent(context.Background(),
		subscriptionEvent("evt_1", stripe.EventTypeCustomerSubscriptionCreated, "cus_123", periodEnd.Unix()))
	require.NoError(t, err)

	sub := store.subs[account.ID]
	assert.Equal(t, "prod_pro", sub.ProductIdentifier)
	assert.Equal(t, periodEnd, sub.ExpiresAt)
	assert.Equal(t, string(domain.PlatformStripe), sub.Platform)
	assert.True(t, sub.IsSandbox, "test-mode events are sandbox")
	assert.True(t, sub.PlatformPayload.Valid)
}

func TestHandleStripeEvent_ReplayIsNoOp(t *testing.T) {
	store, svc, account := newBillingFixture(t)
	event := subscriptionEvent("evt_replay", stripe.EventTypeCustomerSubscriptionUpdated, "cus_123", time.Now().Add(time.Hour).Unix())

	require.NoError(t, svc.HandleStripeEvent(context.Background(), event))
	first := store.subs[account.ID]

	require.NoError(t, svc.HandleStripeEvent(context.Background(), event))

	assert.Equal(t, 1, store.upserts, "second delivery must not write")
	assert.Len(t, store.subs, 1)
	assert.Equal(t, first, store.subs[account.ID])
}

func TestHandleStripeEvent_DeletedExpiresNow(t *testing.T) {
	store, svc, account := newBillingFixture(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.HandleStripeEvent(context.Background(),
		subscriptionEvent("evt_1", stripe.EventTypeCustomerSubscriptionCreated, "cus_123", now.Add(30*24*time.Hour).Unix())))
	require.NoError(t, svc.HandleStripeEvent(context.Background(),
		subscriptionEvent("evt_2", stripe.EventTypeCustomerSubscriptionDeleted, "cus_123", now.Unix())))

	assert.Equal(t, now, store.subs[account.ID].ExpiresAt)
	assert.Equal(t, 1, store.expiries)
}

func TestHandleStripeEvent_OrphanCustomerIsDropped(t *testing.T) {
	store, svc, _ := newBillingFixture(t)

	err := svc.HandleStripeEvent(context.Background(),
		subscriptionEvent("evt_1", stripe.EventTypeCustomerSubscriptionCreated, "cus_unknown", time.Now().Unix()))
	require.NoError(t, err)
	assert.Empty(t, store.subs)
	assert.True(t, store.events["stripe:evt_1"], "orphan events are still recorded")
}

func TestHandleStripeEvent_IgnoresOtherTypes(t *testing.T) {
	store, svc, _ := newBillingFixture(t)

	err := svc.HandleStripeEvent(context.Background(), stripe.Event{ID: "evt_1", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.Empty(t, store.events)
}

func TestHandleStripeEvent_MalformedPayload(t *testing.T) {
	_, svc, _ := newBillingFixture(t)

	err := svc.HandleStripeEvent(context.Background(), stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"sub_1"}`)},
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// =============================================================================
// Active subscription
// =============================================================================

func TestRequireActiveSubscription(t *testing.T) {
	store, svc, account := newBillingFixture(t)
	userID := account.UserID.UUID

	err := svc.RequireActiveSubscription(context.Background(), userID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	assert.Equal(t, domain.ActiveSubscriptionDetail, domain.ErrorMessage(err))

	_, err = store.UpsertSubscription(context.Background(), repository.UpsertSubscriptionParams{
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, svc.RequireActiveSubscription(context.Background(), userID))
}

func TestRequireActiveSubscription_ThroughOwnedTeam(t *testing.T) {
	store := newFakeStore()
	svc := NewBillingService(store, nil, discardLogger())
	ownerID := uuid.New()

	team, err := store.CreateTeam(context.Background(), repository.CreateTeamParams{
		Name: "Crew", Slug: "crew", OwnerID: uuid.NullUUID{UUID: ownerID, Valid: true},
	})
	require.NoError(t, err)
	teamAccount := store.addAccount(uuid.NullUUID{}, uuid.NullUUID{UUID: team.ID, Valid: true}, "")
	_, err = store.UpsertSubscription(context.Background(), repository.UpsertSubscriptionParams{
		AccountID: teamAccount.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	assert.NoError(t, svc.RequireActiveSubscription(context.Background(), ownerID))
	assert.Error(t, svc.RequireActiveSubscription(context.Background(), uuid.New()))
}

// =============================================================================
// Add value / checkout / portal
// =============================================================================

func TestAddValue(t *testing.T) {
	store, svc, account := newBillingFixture(t)
	user := &domain.User{ID: account.UserID.UUID, Email: "ada@example.com"}

	require.NoError(t, svc.AddValue(context.Background(), user, "pm_card_visa", 2500))
	assert.Equal(t, int64(2500), store.accounts[account.ID].BalanceCents)

	tests := []struct {
		name     string
		pm       string
		amount   int64
		wantCode string
	}{
		{"below minimum", "pm_card_visa", 499, domain.EINVALID},
		{"at maximum", "pm_card_visa", billing.MaxTopUpCents, domain.EINVALID},
		{"missing payment method", "", 1000, domain.EINVALID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddValue(context.Background(), user, tt.pm, tt.amount)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
	assert.Equal(t, int64(2500), store.accounts[account.ID].BalanceCents, "rejected top-ups leave the balance alone")
}

func TestAddValue_CardErrorShowsStripeMessage(t *testing.T) {
	store, _, account := newBillingFixture(t)
	stripeFake := &fakeStripe{chargeErr: &billing.CardError{UserMessage: "Your card was declined."}}
	svc := NewBillingService(store, stripeFake, discardLogger())
	user := &domain.User{ID: account.UserID.UUID}

	err := svc.AddValue(context.Background(), user, "pm_card_declined", 1000)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, "Your card was declined.", domain.ErrorMessage(err))

	stripeFake.chargeErr = errors.New("network down")
	err = svc.AddValue(context.Background(), user, "pm_card_visa", 1000)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Zero(t, store.accounts[account.ID].BalanceCents)
}

func TestCreateCheckout_UsesSiteAttributes(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	store.addAccount(uuid.NullUUID{UUID: userID, Valid: true}, uuid.NullUUID{}, "")
	stripeFake := &fakeStripe{}
	svc := NewBillingService(store, stripeFake, discardLogger())

	attrs := domain.SiteAttributes{StripeProductID: "prod_site", StripePriceCents: 1500}
	url, err := svc.CreateCheckout(context.Background(), &domain.User{ID: userID}, attrs, "https://a.test/settings/", "https://a.test/settings/")
	require.NoError(t, err)

	assert.NotEmpty(t, url)
	assert.Equal(t, "cus_test", stripeFake.checkout.CustomerID, "customer is created lazily")
	assert.Equal(t, "prod_site", stripeFake.checkout.ProductID)
	assert.Equal(t, int64(1500), stripeFake.checkout.PriceCents)
}

func TestCreatePortal_RequiresCustomer(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	store.addAccount(uuid.NullUUID{UUID: userID, Valid: true}, uuid.NullUUID{}, "")
	svc := NewBillingService(store, &fakeStripe{}, discardLogger())

	_, err := svc.CreatePortal(context.Background(), &domain.User{ID: userID}, "https://a.test/")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, "No Stripe customer found", domain.ErrorMessage(err))
}

func TestBillingService_NotConfigured(t *testing.T) {
	svc := NewBillingService(newFakeStore(), nil, discardLogger())
	user := &domain.User{ID: uuid.New()}

	err := svc.AddValue(context.Background(), user, "pm", 1000)
	assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))

	_, err = svc.CreatePortal(context.Background(), user, "")
	assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))
}
