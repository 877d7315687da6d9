// Package gateway talks to the payment gateway: it creates checkout links and
// verifies the signed webhooks the gateway sends when a payment settles.
package gateway

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SuccessCode is the gateway's code for a successful call or payment.
const SuccessCode = "00"

// PaymentLinkRequest is a checkout link to create.
type PaymentLinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	ReturnURL   string
	CancelURL   string
}

// PaymentLink is a created checkout link.
type PaymentLink struct {
	CheckoutURL   string `json:"checkoutUrl"`
	PaymentLinkID string `json:"paymentLinkId"`
	OrderCode     int64  `json:"orderCode"`
	Status        string `json:"status"`
}

// WebhookData is the verified payload of a payment notification.
type WebhookData struct {
	OrderCode           int64  `json:"orderCode"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	Reference           string `json:"reference"`
	TransactionDateTime string `json:"transactionDateTime"`
	PaymentLinkID       string `json:"paymentLinkId"`
	Code                string `json:"code"`
	Desc                string `json:"desc"`

	EnvelopeCode string `json:"-"`
	EnvelopeDesc string `json:"-"`
}

// Paid reports whether the notification describes a successful payment.
func (d *WebhookData) Paid() bool {
	return d.EnvelopeCode == SuccessCode && (d.Code == "" || d.Code == SuccessCode)
}

// Gateway is what the payment service needs from the gateway.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error)
	VerifyWebhook(body []byte) (*WebhookData, error)
}

// PayOSClient is an HTTP client for the PayOS merchant API.
type PayOSClient struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	httpClient  *http.Client
}

// NewPayOSClient creates a new gateway client.
func NewPayOSClient(baseURL, clientID, apiKey, checksumKey string, httpClient *http.Client) *PayOSClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PayOSClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		apiKey:      apiKey,
		checksumKey: checksumKey,
		httpClient:  httpClient,
	}
}

// CreatePaymentLink creates a checkout link for a single line item.
func (c *PayOSClient) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	body := map[string]interface{}{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": req.Description,
		"returnUrl":   req.ReturnURL,
		"cancelUrl":   req.CancelURL,
		"items": []map[string]interface{}{
			{"name": "Fund contribution", "quantity": 1, "price": req.Amount},
		},
		"signature": paymentRequestSignature(req, c.checksumKey),
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/payment-requests", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("creating payment link: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("creating payment link: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Code string       `json:"code"`
		Desc string       `json:"desc"`
		Data *PaymentLink `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding payment link response: %w", err)
	}
	if result.Code != SuccessCode || result.Data == nil {
		return nil, fmt.Errorf("creating payment link: gateway code %s: %s", result.Code, result.Desc)
	}
	return result.Data, nil
}

// VerifyWebhook verifies a webhook body with the client's checksum key.
func (c *PayOSClient) VerifyWebhook(body []byte) (*WebhookData, error) {
	return VerifyWebhook(body, c.checksumKey)
}

// orderCodeEntropy supplies the random suffix of order codes.
var orderCodeEntropy io.Reader = rand.Reader

// NewOrderCode returns a numeric order code: the current unix millisecond
// followed by three random digits. It stays below 2^53 so it survives
// JSON number round trips.
func NewOrderCode() (int64, error) {
	var b [2]byte
	if _, err := io.ReadFull(orderCodeEntropy, b[:]); err != nil {
		return 0, fmt.Errorf("generating order code: %w", err)
	}
	return time.Now().UnixMilli()*1000 + int64(binary.BigEndian.Uint16(b[:])%1000), nil
}
