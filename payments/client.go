// Package payments is a pass-through client for the hosted payment
// provider's callable endpoints. Requests and responses stay opaque: no
// business logic, no retries, no interpretation of provider payloads.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Client struct {
	log       *slog.Logger
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		log:       log,
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession starts a hosted checkout for a subscription plan.
func (c *Client) CreateCheckoutSession(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, "createCheckoutSession", payload)
}

// CreatePortalSession opens the provider-hosted billing portal for a customer.
func (c *Client) CreatePortalSession(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, "createPortalSession", payload)
}

// ListPaymentMethods returns the customer's stored payment methods.
func (c *Client) ListPaymentMethods(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, "listPaymentMethods", payload)
}

// CancelSubscription cancels a subscription at period end.
func (c *Client) CancelSubscription(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, "cancelSubscription", payload)
}

// call POSTs the opaque payload to one callable endpoint and hands the
// response body back untouched. Non-2xx responses become errors carrying the
// provider's status; the body is logged, never parsed.
func (c *Client) call(ctx context.Context, function string, payload json.RawMessage) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment call %s failed: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Payment provider rejected call", "function", function, "status", resp.StatusCode)
		return nil, fmt.Errorf("payment call %s rejected: status %d", function, resp.StatusCode)
	}
	return body, nil
}
