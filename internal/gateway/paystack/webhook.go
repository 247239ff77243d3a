package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/achingachris/mya-server/internal/domain"
)

const (
	SignatureHeader = "x-paystack-signature"

	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Sign returns the hex HMAC-SHA512 of body, as sent in SignatureHeader.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected))
}

type webhookPayload struct {
	Event string          `json:"event"`
	Data  transactionData `json:"data"`
}

// ParseWebhook authenticates body and decodes it. Nothing in the body is
// looked at until the signature matches.
func (c *Client) ParseWebhook(body []byte, signature string) (domain.PaymentEvent, error) {
	if !VerifySignature(body, signature, c.webhookSecret) {
		return domain.PaymentEvent{}, domain.ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode webhook: %w", err)
	}

	event := domain.PaymentEvent{
		Type:      payload.Event,
		Reference: payload.Data.Reference,
		Amount:    payload.Data.Amount,
		Metadata:  decodeMetadata(payload.Data.Metadata),
		Outcome:   domain.PaymentProcessing,
	}
	switch payload.Event {
	case EventChargeSuccess:
		event.Outcome = domain.PaymentSucceeded
	case EventChargeFailed:
		event.Outcome = domain.PaymentFailed
	}
	if event.Reference == "" && event.Metadata != nil {
		event.Reference = event.Metadata.Reference
	}
	return event, nil
}
