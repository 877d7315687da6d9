package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSignature is returned when a webhook body fails verification.
var ErrInvalidSignature = errors.New("gateway: invalid webhook signature")

// Sign returns the hex HMAC-SHA256 of the "k1=v1&k2=v2" form of fields,
// sorted by key.
func Sign(fields map[string]string, checksumKey string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// paymentRequestSignature covers the fields the gateway signs on link creation.
func paymentRequestSignature(req PaymentLinkRequest, checksumKey string) string {
	return Sign(map[string]string{
		"amount":      fmt.Sprint(req.Amount),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   fmt.Sprint(req.OrderCode),
		"returnUrl":   req.ReturnURL,
	}, checksumKey)
}

// VerifyWebhook checks the body's signature over its data object and returns
// the decoded data.
func VerifyWebhook(body []byte, checksumKey string) (*WebhookData, error) {
	var envelope struct {
		Code      string          `json:"code"`
		Desc      string          `json:"desc"`
		Success   bool            `json:"success"`
		Data      json.RawMessage `json:"data"`
		Signature string          `json:"signature"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("gateway: decoding webhook: %w", err)
	}
	if envelope.Signature == "" || len(envelope.Data) == 0 {
		return nil, ErrInvalidSignature
	}

	fields, err := flatten(envelope.Data)
	if err != nil {
		return nil, err
	}
	expected := Sign(fields, checksumKey)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(envelope.Signature))) {
		return nil, ErrInvalidSignature
	}

	var data WebhookData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("gateway: decoding webhook data: %w", err)
	}
	data.EnvelopeCode = envelope.Code
	data.EnvelopeDesc = envelope.Desc
	return &data, nil
}

// flatten renders each top-level value of a JSON object the way the gateway
// does before signing: strings raw, null as "", everything else as JSON.
func flatten(raw json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("gateway: decoding webhook data: %w", err)
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = fmt.Sprint(val)
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			fields[k] = string(encoded)
		}
	}
	return fields, nil
}
