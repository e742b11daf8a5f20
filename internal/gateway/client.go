// Package gateway is the HTTP client for the external payment provider.
// The surface is two calls: create an order (returning an approval URL the
// customer is redirected to) and capture a previously approved order.  Both
// calls are made through the payment service's circuit breaker; this package
// only knows how to speak the provider's wire format.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client talks to the provider's orders API using basic auth.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
}

// New builds a client.  The HTTP client's timeout is a backstop; the
// breaker's per-call context timeout is the operative bound.
func New(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Order is the provider's response to order creation.
type Order struct {
	ID         string
	ApproveURL string
}

// Capture is the provider's response to a capture request.
type Capture struct {
	ID          string
	AmountCents uint32
	Currency    string
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount struct {
					Value        string `json:"value"`
					CurrencyCode string `json:"currency_code"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder opens an order for the given amount and returns the order id
// plus the approval URL the customer must visit.
func (c *Client) CreateOrder(ctx context.Context, amountCents uint32, currency string) (*Order, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": currency,
				"value":         centsToValue(amountCents),
			},
		}},
	}
	var res orderResponse
	if err := c.post(ctx, "/v2/checkout/orders", body, &res); err != nil {
		return nil, err
	}
	order := &Order{ID: res.ID}
	for _, l := range res.Links {
		if l.Rel == "approve" {
			order.ApproveURL = l.Href
		}
	}
	if order.ID == "" {
		return nil, errors.New("gateway returned no order id")
	}
	return order, nil
}

// CaptureOrder captures an approved order and returns the capture id and the
// captured amount.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var res captureResponse
	if err := c.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", map[string]any{}, &res); err != nil {
		return nil, err
	}
	if res.Status != "COMPLETED" {
		return nil, fmt.Errorf("gateway capture status %q", res.Status)
	}
	for _, pu := range res.PurchaseUnits {
		for _, cap := range pu.Payments.Captures {
			return &Capture{
				ID:          cap.ID,
				AmountCents: valueToCents(cap.Amount.Value),
				Currency:    cap.Amount.CurrencyCode,
			}, nil
		}
	}
	return nil, errors.New("gateway capture response carried no capture")
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.secret)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("gateway %s failed: %s (%d)", path, bytes.TrimSpace(raw), res.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse gateway response: %w", err)
	}
	return nil
}

func centsToValue(cents uint32) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func valueToCents(v string) uint32 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return uint32(f*100 + 0.5)
}
