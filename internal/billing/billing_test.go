package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func TestRequireWithinHardCap(t *testing.T) {
	tests := []struct {
		name    string
		current int64
		limit   int64
		allowed bool
	}{
		{"below cap", 1, 3, true},
		{"at cap", 3, 3, false},
		{"over cap", 5, 3, false},
		{"zero cap disables", 0, 0, false},
		{"negative cap disables", 0, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireWithinHardCap("team.create", tt.current, tt.limit, "too many teams")
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
			assert.Equal(t, "too many teams", domain.ErrorMessage(err))
		})
	}
}

func TestValidateTopUp(t *testing.T) {
	assert.Error(t, ValidateTopUp("op", 499))
	assert.NoError(t, ValidateTopUp("op", 500))
	assert.NoError(t, ValidateTopUp("op", 19999))
	assert.Error(t, ValidateTopUp("op", 20000))
}

func TestParseSubscriptionEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_123",
		"object": "subscription",
		"customer": "cus_456",
		"current_period_end": 1751328000,
		"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_1", "product": "prod_789"}}]}
	}`)

	got, err := ParseSubscriptionEvent(stripe.Event{
		ID:   "evt_1",
		Type: "customer.subscription.updated",
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_123", got.SubscriptionID)
	assert.Equal(t, "cus_456", got.CustomerID)
	assert.Equal(t, "prod_789", got.ProductID)
	assert.Equal(t, time.Unix(1751328000, 0).UTC(), got.CurrentPeriodEnd)

	_, err = ParseSubscriptionEvent(stripe.Event{Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"sub_1"}`)}})
	assert.Error(t, err, "customer is required")

	_, err = ParseSubscriptionEvent(stripe.Event{})
	assert.Error(t, err)
}
