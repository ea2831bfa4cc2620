package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// EventType identifies the Creem webhook event variants we reconcile.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout.completed"
	EventCheckoutExpired       EventType = "checkout.expired"
	EventSubscriptionCreated   EventType = "subscription.created"
	EventSubscriptionUpdated   EventType = "subscription.updated"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventLicenseActivated      EventType = "license.activated"
	EventLicenseDeactivated    EventType = "license.deactivated"
	EventTransactionCompleted  EventType = "transaction.completed"
	EventTransactionFailed     EventType = "transaction.failed"
	EventRefundProcessed       EventType = "refund.processed"
)

var (
	ErrInvalidJSON  = errors.New("invalid JSON payload")
	ErrInvalidEvent = errors.New("invalid event structure")
)

// Event is the webhook envelope. Data stays raw until the type-specific
// payload is decoded once, at the dispatch boundary.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt *EventTime      `json:"createdAt,omitempty"`
}

// ParseEvent decodes and structurally validates a webhook body.
func ParseEvent(raw []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, ErrInvalidJSON
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, ErrInvalidEvent
	}
	return &event, nil
}

// EventTime accepts the provider's mixed timestamp encodings: RFC3339 strings,
// unix seconds and unix milliseconds.
type EventTime struct {
	time.Time
}

func (t *EventTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}

	if strings.HasPrefix(s, "\"") {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	// Heuristic: values past the year 2969 in seconds are milliseconds.
	if n > 1e12 {
		t.Time = time.UnixMilli(n).UTC()
	} else {
		t.Time = time.Unix(n, 0).UTC()
	}
	return nil
}

// TimePtr returns the wrapped time as a *time.Time, nil for absent values.
func (t *EventTime) TimePtr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	tt := t.Time
	return &tt
}

// CheckoutPayload covers checkout.completed / checkout.expired.
type CheckoutPayload struct {
	CheckoutID    string `json:"checkoutId"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

// SubscriptionPayload covers the subscription.* lifecycle events.
type SubscriptionPayload struct {
	SubscriptionID     string     `json:"subscriptionId"`
	CustomerEmail      string     `json:"customerEmail"`
	CustomerName       string     `json:"customerName"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	BillingCycle       string     `json:"billingCycle"`
	CurrentPeriodStart *EventTime `json:"currentPeriodStart"`
	CurrentPeriodEnd   *EventTime `json:"currentPeriodEnd"`
	TrialStart         *EventTime `json:"trialStart"`
	TrialEnd           *EventTime `json:"trialEnd"`
	CancelAtPeriodEnd  *bool      `json:"cancelAtPeriodEnd"`
}

// LicensePayload covers license.activated / license.deactivated.
type LicensePayload struct {
	CustomerEmail string `json:"customerEmail"`
	LicenseKey    string `json:"licenseKey"`
}

// TransactionPayload covers transaction.* and refund.processed.
type TransactionPayload struct {
	TransactionID  string `json:"transactionId"`
	CustomerEmail  string `json:"customerEmail"`
	CustomerName   string `json:"customerName"`
	SubscriptionID string `json:"subscriptionId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"paymentMethod"`
}

func (e *Event) DecodeCheckout() (*CheckoutPayload, error) {
	var p CheckoutPayload
	if err := decodeData(e.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *Event) DecodeSubscription() (*SubscriptionPayload, error) {
	var p SubscriptionPayload
	if err := decodeData(e.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *Event) DecodeLicense() (*LicensePayload, error) {
	var p LicensePayload
	if err := decodeData(e.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *Event) DecodeTransaction() (*TransactionPayload, error) {
	var p TransactionPayload
	if err := decodeData(e.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeData(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
