package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/launchdeck/launchdeck/internal/pkg/env"
)

const defaultCreemAPIBaseURL = "https://api.creem.io/v1"

// CreemClient is the outbound REST client for the payment provider. Webhook
// processing itself makes no outbound calls; this client serves the checkout
// and subscription-query paths of the dashboard.
type CreemClient struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

// CheckoutRequest describes a checkout session to create.
type CheckoutRequest struct {
	ProductID     string `json:"product_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	SuccessURL    string `json:"success_url,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// CheckoutSession is the provider's answer to a checkout creation.
type CheckoutSession struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

// ProviderSubscription is the provider-side view of a subscription.
type ProviderSubscription struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end_date"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

func NewCreemClientFromEnv() *CreemClient {
	return &CreemClient{
		APIKey:     strings.TrimSpace(env.GetEnv("CREEM_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("CREEM_API_BASE_URL", defaultCreemAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession creates a hosted checkout for the given product.
func (c *CreemClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("CREEM_API_KEY is not configured")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, errors.New("product_id is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/checkouts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("creem checkout creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.CheckoutURL) == "" {
		return nil, errors.New("creem checkout response missing checkout_url")
	}
	return &out, nil
}

// GetSubscription fetches the provider-side state of a subscription.
func (c *CreemClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("CREEM_API_KEY is not configured")
	}
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/subscriptions/"+id, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("creem subscription request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out ProviderSubscription
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("creem subscription response missing id")
	}
	return &out, nil
}
