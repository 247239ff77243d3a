package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
)

// CheckoutInitiator is the minimal interface needed to start a payment.
type CheckoutInitiator interface {
	Initiate(ctx context.Context, in app.InitiateInput) (app.InitiateResult, error)
}

const voteRequestSchema = `{
  "type": "object",
  "properties": {
    "number_of_votes": {"type": "integer"},
    "voter_name":      {"type": "string", "minLength": 1, "maxLength": 200},
    "voter_email":     {"type": "string", "minLength": 3, "maxLength": 254},
    "voter_phone":     {"type": "string", "minLength": 1, "maxLength": 32}
  },
  "required": ["number_of_votes", "voter_name", "voter_email", "voter_phone"],
  "additionalProperties": false
}`

const ticketRequestSchema = `{
  "type": "object",
  "properties": {
    "quantity":        {"type": "integer", "minimum": 1},
    "purchaser_name":  {"type": "string", "minLength": 1, "maxLength": 200},
    "purchaser_email": {"type": "string", "minLength": 3, "maxLength": 254},
    "purchaser_phone": {"type": "string", "minLength": 1, "maxLength": 32}
  },
  "required": ["purchaser_name", "purchaser_email", "purchaser_phone"],
  "additionalProperties": false
}`

var (
	voteSchema   = mustSchema(voteRequestSchema)
	ticketSchema = mustSchema(ticketRequestSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("http: invalid request schema: " + err.Error())
	}
	return schema
}

// decodeValidated reads the body, checks it against schema and decodes it
// into dst. It writes the error response itself and reports false on failure.
func decodeValidated(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeInvalidRequestBody, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, strings.Join(msgs, "; "))
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

// HandleInitiateVote returns an HTTP handler that starts a vote payment for
// the nominee in the path.
func HandleInitiateVote(svc CheckoutInitiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req voteRequest
		if !decodeValidated(w, r, voteSchema, &req) {
			return
		}

		res, err := svc.Initiate(r.Context(), app.InitiateInput{
			Kind:      domain.ChargeKindVote,
			SubjectID: chi.URLParam(r, "nomineeID"),
			Quantity:  req.NumberOfVotes,
			Payer: domain.Payer{
				Name:  req.VoterName,
				Email: req.VoterEmail,
				Phone: req.VoterPhone,
			},
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newCheckoutResponse(res))
	}
}

// HandlePurchaseTicket returns an HTTP handler that starts a ticket payment
// for the ticket type in the path. Quantity defaults to one.
func HandlePurchaseTicket(svc CheckoutInitiator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ticketRequest
		if !decodeValidated(w, r, ticketSchema, &req) {
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		res, err := svc.Initiate(r.Context(), app.InitiateInput{
			Kind:      domain.ChargeKindTicket,
			SubjectID: chi.URLParam(r, "ticketTypeID"),
			Quantity:  quantity,
			Payer: domain.Payer{
				Name:  req.PurchaserName,
				Email: req.PurchaserEmail,
				Phone: req.PurchaserPhone,
			},
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newCheckoutResponse(res))
	}
}

type voteRequest struct {
	NumberOfVotes int    `json:"number_of_votes"`
	VoterName     string `json:"voter_name"`
	VoterEmail    string `json:"voter_email"`
	VoterPhone    string `json:"voter_phone"`
}

type ticketRequest struct {
	Quantity       *int   `json:"quantity"`
	PurchaserName  string `json:"purchaser_name"`
	PurchaserEmail string `json:"purchaser_email"`
	PurchaserPhone string `json:"purchaser_phone"`
}

type checkoutResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

func newCheckoutResponse(res app.InitiateResult) checkoutResponse {
	return checkoutResponse{
		Reference:        res.Reference,
		AuthorizationURL: res.CheckoutURL,
		Amount:           res.Charge.AmountDue,
		Currency:         res.Charge.Currency,
	}
}
