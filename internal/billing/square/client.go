// Package square is a thin HTTP client for the Square invoicing provider.
// Only the two calls the billing workflow needs are implemented.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agencycrm_backend/platform/config"
	"agencycrm_backend/platform/logger"

	"github.com/google/uuid"
)

// Client talks to the Square REST API. A nil *Client is a valid "provider
// not configured" value; callers check before use.
type Client struct {
	baseURL    string
	token      string
	locationID string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient returns nil when Square is not configured.
func NewClient(cfg config.SquareConfig, log *logger.Logger) *Client {
	if !cfg.IsSquareEnabled() {
		return nil
	}
	return &Client{
		baseURL:    cfg.GetSquareBaseURL(),
		token:      cfg.GetSquareAccessToken(),
		locationID: cfg.GetSquareLocationID(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// InvoiceRequest is the engine-side view of what Square needs.
type InvoiceRequest struct {
	Title          string
	AmountCents    int64
	RecipientEmail string
	RecipientName  string
	DueDate        *time.Time
}

// InvoiceResult carries the provider linkage back to the caller.
type InvoiceResult struct {
	ExternalID string
	PaymentURL string
}

// CreateInvoice registers the invoice with Square and requests a checkout
// link for it. The two calls are not atomic on Square's side; a missing
// payment link is tolerated and left empty.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (InvoiceResult, error) {
	payload := map[string]any{
		"idempotency_key": uuid.NewString(),
		"invoice": map[string]any{
			"location_id": c.locationID,
			"title":       req.Title,
			"primary_recipient": map[string]any{
				"email_address": req.RecipientEmail,
				"given_name":    req.RecipientName,
			},
			"payment_requests": []map[string]any{{
				"request_type": "BALANCE",
				"fixed_amount_requested_money": map[string]any{
					"amount":   req.AmountCents,
					"currency": "USD",
				},
			}},
		},
	}
	if req.DueDate != nil {
		payload["invoice"].(map[string]any)["payment_requests"].([]map[string]any)[0]["due_date"] = req.DueDate.Format("2006-01-02")
	}

	var created struct {
		Invoice struct {
			ID string `json:"id"`
		} `json:"invoice"`
	}
	if err := c.post(ctx, "/v2/invoices", payload, &created); err != nil {
		return InvoiceResult{}, fmt.Errorf("square create invoice: %w", err)
	}

	result := InvoiceResult{ExternalID: created.Invoice.ID}

	link, err := c.CreateCheckoutLink(ctx, req.Title, req.AmountCents)
	if err != nil {
		c.log.IntegrationFailure("square", "create_checkout_link", err)
		return result, nil
	}
	result.PaymentURL = link
	return result, nil
}

// CreateCheckoutLink requests a hosted payment page for an ad-hoc amount.
func (c *Client) CreateCheckoutLink(ctx context.Context, title string, amountCents int64) (string, error) {
	payload := map[string]any{
		"idempotency_key": uuid.NewString(),
		"quick_pay": map[string]any{
			"name":        title,
			"location_id": c.locationID,
			"price_money": map[string]any{
				"amount":   amountCents,
				"currency": "USD",
			},
		},
	}

	var created struct {
		PaymentLink struct {
			URL string `json:"url"`
		} `json:"payment_link"`
	}
	if err := c.post(ctx, "/v2/online-checkout/payment-links", payload, &created); err != nil {
		return "", fmt.Errorf("square create payment link: %w", err)
	}
	return created.PaymentLink.URL, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("square %s returned %d: %s", path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
