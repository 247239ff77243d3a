package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
)

// CallbackVerifier is the minimal interface needed for the payer redirect.
type CallbackVerifier interface {
	VerifyCallback(ctx context.Context, reference string) (app.CallbackResult, error)
}

const callbackStatusNotFound = "not_found"

// HandlePaymentCallback returns an HTTP handler for the payer's return from
// hosted checkout. With a non-empty resultURL, browsers are redirected there
// with the reference and payment_status appended; clients asking for JSON
// always get the JSON body.
func HandlePaymentCallback(svc CallbackVerifier, resultURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reference := strings.TrimSpace(q.Get("reference"))
		if reference == "" {
			reference = strings.TrimSpace(q.Get("trxref"))
		}

		res, err := svc.VerifyCallback(r.Context(), reference)
		status := http.StatusOK
		resp := callbackResponse{Reference: reference, Status: string(res.Status)}
		switch {
		case err == nil:
			if res.Status == domain.ChargeStatusPending {
				status = http.StatusAccepted
			}
		case errors.Is(err, domain.ErrChargeNotFound):
			status = http.StatusNotFound
			resp.Status = callbackStatusNotFound
		case errors.Is(err, domain.ErrGatewayUnavailable):
			status = http.StatusAccepted
			resp.Status = string(domain.ChargeStatusPending)
		default:
			writeServiceError(w, r, err)
			return
		}

		if resultURL != "" && !wantsJSON(r) {
			http.Redirect(w, r, resultLocation(resultURL, resp), http.StatusSeeOther)
			return
		}
		writeJSON(w, status, resp)
	}
}

type callbackResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func resultLocation(base string, resp callbackResponse) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("reference", resp.Reference)
	q.Set("payment_status", resp.Status)
	u.RawQuery = q.Encode()
	return u.String()
}
