// Package gateway talks to the hosted-checkout payment provider. The provider
// report from Verify is the only source of truth for settlement; webhook
// payloads are trusted only after their signature header matched the
// pre-shared secret hash.
package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable covers transport errors and non-2xx provider responses.
// Callers may retry the same operation later.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusPending    Status = "pending"
)

// Charge is the provider's report about one transaction.
type Charge struct {
	GatewayTxID string
	Reference   string
	Status      Status
	Amount      decimal.Decimal
	Currency    string
}

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type InitiateRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	RedirectURL string
	Customer    Customer
	Title       string
	Description string
}

type Client struct {
	baseURL    string
	secretKey  string
	secretHash string
	http       *http.Client
}

func NewClient(baseURL, secretKey, secretHash string) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		secretHash: secretHash,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateBody struct {
	TxRef          string   `json:"tx_ref"`
	Amount         string   `json:"amount"`
	Currency       string   `json:"currency"`
	RedirectURL    string   `json:"redirect_url"`
	Customer       Customer `json:"customer"`
	Customizations struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"customizations"`
}

type initiateResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Initiate asks the provider for a hosted payment link.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	body := initiateBody{
		TxRef:       req.Reference,
		Amount:      req.Amount.String(),
		Currency:    req.Currency,
		RedirectURL: req.RedirectURL,
		Customer:    req.Customer,
	}
	body.Customizations.Title = req.Title
	body.Customizations.Description = req.Description

	var out initiateResponse
	if err := c.do(ctx, http.MethodPost, "/payments", body, &out); err != nil {
		return "", err
	}
	if out.Status != "success" || out.Data.Link == "" {
		return "", fmt.Errorf("initiate payment rejected: %w", ErrUnavailable)
	}
	return out.Data.Link, nil
}

type verifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID       json.Number     `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   Status          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

// Verify fetches the provider's authoritative report for a charge by its
// gateway transaction id.
func (c *Client) Verify(ctx context.Context, gatewayTxID string) (Charge, error) {
	var out verifyResponse
	path := "/transactions/" + url.PathEscape(gatewayTxID) + "/verify"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Charge{}, err
	}
	if out.Status != "success" {
		return Charge{}, fmt.Errorf("verify %s rejected: %w", gatewayTxID, ErrUnavailable)
	}
	id := out.Data.ID.String()
	if id == "" {
		id = gatewayTxID
	}
	return Charge{
		GatewayTxID: id,
		Reference:   out.Data.TxRef,
		Status:      out.Data.Status,
		Amount:      out.Data.Amount,
		Currency:    out.Data.Currency,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, ErrUnavailable)
	}
	return nil
}

// VerifySignature compares the webhook's verif-hash header byte-exact against
// the pre-shared secret hash.
func (c *Client) VerifySignature(header string) bool {
	if c.secretHash == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(c.secretHash)) == 1
}

// WebhookEvent is the raw provider webhook envelope.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID       json.Number     `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   Status          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

func ParseWebhook(raw []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("parse webhook payload: %w", err)
	}
	return ev, nil
}

// Charge extracts the charge report from a charge.completed event.
func (ev WebhookEvent) Charge() (Charge, bool) {
	if ev.Event != "charge.completed" {
		return Charge{}, false
	}
	return Charge{
		GatewayTxID: ev.Data.ID.String(),
		Reference:   ev.Data.TxRef,
		Status:      ev.Data.Status,
		Amount:      ev.Data.Amount,
		Currency:    ev.Data.Currency,
	}, true
}
