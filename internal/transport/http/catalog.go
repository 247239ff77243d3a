package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
)

// CatalogReader is the minimal interface needed for public catalog reads.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error)
	ListAvailableTicketTypes(ctx context.Context) ([]domain.TicketType, error)
}

// CatalogAdmin is the minimal interface needed for admin catalog endpoints.
type CatalogAdmin interface {
	CreateCategory(ctx context.Context, in app.CreateCategoryInput) (domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateNominee(ctx context.Context, in app.CreateNomineeInput) (domain.Nominee, error)
	ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error)
	CreateTicketType(ctx context.Context, in app.CreateTicketTypeInput) (domain.TicketType, error)
	ListTicketTypes(ctx context.Context) ([]domain.TicketType, error)
}

func HandleListCategories(svc CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, categoryResponses(categories))
	}
}

// HandleListNominees lists nominees, narrowed by ?category_id= when present.
func HandleListNominees(svc CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nominees, err := svc.ListNominees(r.Context(), r.URL.Query().Get("category_id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nomineeResponses(nominees))
	}
}

// HandleListTicketTypes lists ticket types that still have capacity.
func HandleListTicketTypes(svc CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := svc.ListAvailableTicketTypes(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticketTypeResponses(types))
	}
}

// HandleAdminCategories returns an HTTP handler for category creation/listing.
func HandleAdminCategories(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			categories, err := svc.ListCategories(r.Context())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, categoryResponses(categories))
		case http.MethodPost:
			var req createCategoryRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			category, err := svc.CreateCategory(r.Context(), app.CreateCategoryInput{
				Name:        req.Name,
				Description: req.Description,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newCategoryResponse(category))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminNominees returns an HTTP handler for nominee creation/listing.
func HandleAdminNominees(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			nominees, err := svc.ListNominees(r.Context(), r.URL.Query().Get("category_id"))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, nomineeResponses(nominees))
		case http.MethodPost:
			var req createNomineeRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			nominee, err := svc.CreateNominee(r.Context(), app.CreateNomineeInput{
				CategoryID: req.CategoryID,
				Name:       req.Name,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newNomineeResponse(nominee))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminTicketTypes returns an HTTP handler for ticket type
// creation/listing. Sold-out types are included.
func HandleAdminTicketTypes(svc CatalogAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			types, err := svc.ListTicketTypes(r.Context())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ticketTypeResponses(types))
		case http.MethodPost:
			var req createTicketTypeRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			tt, err := svc.CreateTicketType(r.Context(), app.CreateTicketTypeInput{
				Name:        req.Name,
				Description: req.Description,
				UnitPrice:   req.UnitPrice,
				Capacity:    req.Capacity,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newTicketTypeResponse(tt))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type createNomineeRequest struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

type createTicketTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitPrice   int64  `json:"unit_price"`
	Capacity    int    `json:"capacity"`
}

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type nomineeResponse struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Votes      int64     `json:"votes"`
	CreatedAt  time.Time `json:"created_at"`
}

type ticketTypeResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UnitPrice   int64     `json:"unit_price"`
	Capacity    int       `json:"capacity"`
	Sold        int       `json:"sold"`
	Remaining   int       `json:"remaining"`
	CreatedAt   time.Time `json:"created_at"`
}

func newCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

func categoryResponses(in []domain.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(in))
	for _, c := range in {
		out = append(out, newCategoryResponse(c))
	}
	return out
}

func newNomineeResponse(n domain.Nominee) nomineeResponse {
	return nomineeResponse{ID: n.ID, CategoryID: n.CategoryID, Name: n.Name, Votes: n.VoteCount, CreatedAt: n.CreatedAt}
}

func nomineeResponses(in []domain.Nominee) []nomineeResponse {
	out := make([]nomineeResponse, 0, len(in))
	for _, n := range in {
		out = append(out, newNomineeResponse(n))
	}
	return out
}

func newTicketTypeResponse(t domain.TicketType) ticketTypeResponse {
	return ticketTypeResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		UnitPrice:   t.UnitPrice,
		Capacity:    t.Capacity,
		Sold:        t.SoldCount,
		Remaining:   t.Remaining(),
		CreatedAt:   t.CreatedAt,
	}
}

func ticketTypeResponses(in []domain.TicketType) []ticketTypeResponse {
	out := make([]ticketTypeResponse, 0, len(in))
	for _, t := range in {
		out = append(out, newTicketTypeResponse(t))
	}
	return out
}
