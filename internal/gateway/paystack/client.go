// Package paystack talks to the Paystack transaction API and authenticates its
// webhooks.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/achingachris/mya-server/internal/domain"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 15 * time.Second
	// maxResponseBytes caps how much of a gateway response is read.
	maxResponseBytes = 1 << 20
)

var ErrSecretKeyMissing = errors.New("paystack secret key not set")

// APIError is a non-2xx or status=false answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	http          *http.Client
}

type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithWebhookSecret overrides the key used to check webhook signatures. It
// defaults to the secret key, which is what Paystack signs with.
func WithWebhookSecret(secret string) Option {
	return func(c *Client) {
		if secret != "" {
			c.webhookSecret = secret
		}
	}
}

func NewClient(secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		secretKey:     secretKey,
		webhookSecret: secretKey,
		http:          &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Reference   string                 `json:"reference"`
	Currency    string                 `json:"currency,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    domain.PaymentMetadata `json:"metadata"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a hosted checkout session. Amounts are in minor
// units.
func (c *Client) InitializeTransaction(ctx context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return domain.PaymentSession{}, fmt.Errorf("marshal initialize request: %w", err)
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return domain.PaymentSession{}, fmt.Errorf("initialize transaction: %w", err)
	}
	return domain.PaymentSession{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

type transactionData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Metadata  json.RawMessage `json:"metadata"`
}

// VerifyTransaction fetches the authoritative status of a reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (domain.PaymentVerification, error) {
	var data transactionData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return domain.PaymentVerification{}, fmt.Errorf("verify transaction: %w", err)
	}
	ref := data.Reference
	if ref == "" {
		ref = reference
	}
	return domain.PaymentVerification{
		Reference: ref,
		Outcome:   outcome(data.Status),
		Amount:    data.Amount,
		Metadata:  decodeMetadata(data.Metadata),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.secretKey == "" {
		return ErrSecretKeyMissing
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func outcome(status string) domain.PaymentOutcome {
	switch strings.ToLower(status) {
	case "success":
		return domain.PaymentSucceeded
	case "failed", "reversed":
		return domain.PaymentFailed
	case "abandoned":
		return domain.PaymentAbandoned
	default:
		return domain.PaymentProcessing
	}
}

// decodeMetadata tolerates Paystack returning metadata as an object, a JSON
// encoded string, or an empty string.
func decodeMetadata(raw json.RawMessage) *domain.PaymentMetadata {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var md domain.PaymentMetadata
	if err := json.Unmarshal(raw, &md); err == nil {
		return &md
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil
	}
	return &md
}
