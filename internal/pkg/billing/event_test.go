package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_Valid(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"checkout.completed","data":{"checkoutId":"ch_1"},"createdAt":"2026-01-15T10:30:00Z"}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.completed", event.Type)

	created := event.CreatedAt.TimePtr()
	require.NotNil(t, created)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), created.UTC())
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestParseEvent_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing id", `{"type":"checkout.completed"}`},
		{"missing type", `{"id":"evt_1"}`},
		{"blank id", `{"id":"  ","type":"checkout.completed"}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestEventTime_UnixSeconds(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"subscription.created","createdAt":1768473000}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	created := event.CreatedAt.TimePtr()
	require.NotNil(t, created)
	assert.Equal(t, time.Unix(1768473000, 0).UTC(), created.UTC())
}

func TestEventTime_UnixMilliseconds(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"subscription.created","createdAt":1768473000123}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	created := event.CreatedAt.TimePtr()
	require.NotNil(t, created)
	assert.Equal(t, time.UnixMilli(1768473000123).UTC(), created.UTC())
}

func TestEventTime_AbsentIsNil(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"subscription.created"}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Nil(t, event.CreatedAt.TimePtr())
}

func TestDecodeSubscriptionPayload(t *testing.T) {
	raw := []byte(`{"id":"evt_1","type":"subscription.created","data":{
		"subscriptionId":"sub_1",
		"customerEmail":"User@Example.com",
		"plan":"pro",
		"status":"active",
		"billingCycle":"yearly",
		"currentPeriodStart":"2026-01-01T00:00:00Z",
		"currentPeriodEnd":"2027-01-01T00:00:00Z",
		"cancelAtPeriodEnd":true
	}}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)

	payload, err := event.DecodeSubscription()
	require.NoError(t, err)
	assert.Equal(t, "sub_1", payload.SubscriptionID)
	assert.Equal(t, "User@Example.com", payload.CustomerEmail)
	assert.Equal(t, "pro", payload.Plan)
	assert.Equal(t, "yearly", payload.BillingCycle)
	require.NotNil(t, payload.CancelAtPeriodEnd)
	assert.True(t, *payload.CancelAtPeriodEnd)
	require.NotNil(t, payload.CurrentPeriodStart.TimePtr())
	require.NotNil(t, payload.CurrentPeriodEnd.TimePtr())
	assert.Nil(t, payload.TrialStart.TimePtr())
}

func TestDecodeCheckoutPayload_EmptyData(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"checkout.completed"}`))
	require.NoError(t, err)

	payload, err := event.DecodeCheckout()
	require.NoError(t, err)
	assert.Empty(t, payload.CheckoutID)
	assert.Zero(t, payload.Amount)
}
