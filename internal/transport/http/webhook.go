package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
	"github.com/achingachris/mya-server/internal/gateway/paystack"
)

// WebhookHandler is the minimal interface needed to process gateway pushes.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (app.WebhookResult, error)
}

// HandlePaystackWebhook returns an HTTP handler for gateway notifications.
// The raw body is passed through untouched since the signature covers the
// exact bytes sent. Every verified delivery is acknowledged with 200,
// including ones that could not be applied.
func HandlePaystackWebhook(svc WebhookHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.HandleWebhook(r.Context(), body, r.Header.Get(paystack.SignatureHeader))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidSignature) {
				writeError(w, http.StatusUnauthorized, codeInvalidSignature, err.Error())
				return
			}
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, webhookResponse{
			Received: true,
			Outcome:  string(res.Outcome),
		})
	}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}
