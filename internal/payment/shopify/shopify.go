package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/cashreg/internal/payment"
)

// DefaultAPIVersion is the Admin REST API version orders are created against.
const DefaultAPIVersion = "2023-07"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

type orderEnvelope struct {
	Order order `json:"order"`
}

type order struct {
	LineItems       []payment.LineItem    `json:"line_items"`
	TotalPrice      decimal.Decimal       `json:"total_price"`
	FinancialStatus string                `json:"financial_status"`
	Customer        *payment.CustomerInfo `json:"customer,omitempty"`
}

type orderResponse struct {
	Order *struct {
		ID json.Number `json:"id"`
	} `json:"order"`
}

// Client records paid orders in a Shopify store. Credentials travel in the
// X-Shopify-Access-Token header.
type Client struct {
	accessToken string
	client      *http.Client
	baseURL     string
}

func NewClient(storeName, accessToken, apiVersion string, timeout time.Duration) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
		baseURL:     fmt.Sprintf("https://%s.myshopify.com/admin/api/%s", storeName, apiVersion),
	}
}

func buildOrder(req payment.ChargeRequest) orderEnvelope {
	items := req.Items
	if items == nil {
		items = []payment.LineItem{}
	}
	return orderEnvelope{Order: order{
		LineItems:       items,
		TotalPrice:      req.Amount,
		FinancialStatus: "paid",
		Customer:        req.Customer,
	}}
}

// Charge makes exactly one attempt. Only 201 Created with an order id counts
// as success.
func (c *Client) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	payload, err := json.Marshal(buildOrder(req))
	if err != nil {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeMalformed, Reason: "failed to encode order", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders.json", bytes.NewReader(payload))
	if err != nil {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeNetwork, Reason: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeNetwork, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close shopify response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &payment.ChargeError{Outcome: payment.OutcomeAuth, StatusCode: resp.StatusCode, Reason: snippet(body)}
	default:
		return nil, &payment.ChargeError{Outcome: payment.OutcomeRejected, StatusCode: resp.StatusCode, Reason: snippet(body)}
	}

	var decoded orderResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeMalformed, StatusCode: resp.StatusCode, Err: err}
	}
	if decoded.Order == nil || decoded.Order.ID == "" {
		return nil, &payment.ChargeError{Outcome: payment.OutcomeMalformed, StatusCode: resp.StatusCode, Reason: "response has no order id"}
	}

	return &payment.ChargeResult{OrderID: decoded.Order.ID.String()}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
