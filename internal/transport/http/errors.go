package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/achingachris/mya-server/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidQuery         = "invalid_query"
	codeInvalidID            = "invalid_id"
	codeInvalidKind          = "invalid_kind"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidEmail         = "invalid_email"
	codeInvalidReference     = "invalid_reference"
	codePayerRequired        = "payer_required"
	codeSoldOut              = "sold_out"
	codeNomineeNotFound      = "nominee_not_found"
	codeTicketTypeNotFound   = "ticket_type_not_found"
	codeCategoryNotFound     = "category_not_found"
	codeChargeNotFound       = "charge_not_found"
	codeCategoryNameRequired = "category_name_required"
	codeCategoryExists       = "category_already_exists"
	codeNomineeNameRequired  = "nominee_name_required"
	codeTicketNameRequired   = "ticket_type_name_required"
	codeTicketTypeExists     = "ticket_type_already_exists"
	codeInvalidCapacity      = "invalid_capacity"
	codeInvalidPrice         = "invalid_price"
	codeInvalidSignature     = "invalid_signature"
	codeGatewayUnavailable   = "gateway_unavailable"
	codeReferenceExhausted   = "reference_generation_failed"
	codeUnauthorized         = "unauthorized"
	codeRateLimited          = "rate_limited"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: gateway failures wrap the underlying transport error, so
// they are matched before anything more generic.
var serviceErrors = []errorMapping{
	{domain.ErrGatewayUnavailable, http.StatusBadGateway, codeGatewayUnavailable},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidKind, http.StatusBadRequest, codeInvalidKind},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidEmail, http.StatusBadRequest, codeInvalidEmail},
	{domain.ErrInvalidReference, http.StatusBadRequest, codeInvalidReference},
	{domain.ErrPayerRequired, http.StatusBadRequest, codePayerRequired},
	{domain.ErrCategoryNameRequired, http.StatusBadRequest, codeCategoryNameRequired},
	{domain.ErrNomineeNameRequired, http.StatusBadRequest, codeNomineeNameRequired},
	{domain.ErrTicketTypeNameRequired, http.StatusBadRequest, codeTicketNameRequired},
	{domain.ErrInvalidCapacity, http.StatusBadRequest, codeInvalidCapacity},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrInvalidSignature, http.StatusUnauthorized, codeInvalidSignature},
	{domain.ErrNomineeNotFound, http.StatusNotFound, codeNomineeNotFound},
	{domain.ErrTicketTypeNotFound, http.StatusNotFound, codeTicketTypeNotFound},
	{domain.ErrCategoryNotFound, http.StatusNotFound, codeCategoryNotFound},
	{domain.ErrChargeNotFound, http.StatusNotFound, codeChargeNotFound},
	{domain.ErrSoldOut, http.StatusConflict, codeSoldOut},
	{domain.ErrCategoryAlreadyExists, http.StatusConflict, codeCategoryExists},
	{domain.ErrTicketTypeAlreadyExists, http.StatusConflict, codeTicketTypeExists},
	{domain.ErrReferenceGenerationFailed, http.StatusServiceUnavailable, codeReferenceExhausted},
}

// writeServiceError maps a service error onto the JSON error envelope.
// Anything unrecognised is logged and reported as a bare internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			msg := m.err.Error()
			if m.status == http.StatusBadGateway {
				msg = "payment gateway unavailable, try again"
			}
			writeError(w, m.status, m.code, msg)
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
