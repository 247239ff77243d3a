package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

// ChargeLookup is the minimal interface needed for the public status page.
type ChargeLookup interface {
	ChargeDetails(ctx context.Context, reference string) (app.ChargeDetails, error)
}

// ChargeReporter is the minimal interface needed for admin reporting.
type ChargeReporter interface {
	ListCharges(ctx context.Context, filter app.ChargeFilter) ([]app.ChargeRow, error)
	ExportCharges(ctx context.Context, w io.Writer, filter app.ChargeFilter) (int, error)
	Summary(ctx context.Context) (app.Summary, error)
}

// HandleGetCharge returns the status of one charge and the tickets issued for
// it. Payer contact details are not exposed.
func HandleGetCharge(svc ChargeLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := svc.ChargeDetails(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		c := details.Charge
		resp := chargeStatusResponse{
			Reference:  c.Reference,
			Kind:       string(c.Kind),
			SubjectID:  c.SubjectID,
			Quantity:   c.Quantity,
			Amount:     c.AmountDue,
			Currency:   c.Currency,
			Status:     string(c.Status),
			CreatedAt:  c.CreatedAt,
			ResolvedAt: c.ResolvedAt,
			Tickets:    make([]ticketResponse, 0, len(details.Tickets)),
		}
		for _, t := range details.Tickets {
			resp.Tickets = append(resp.Tickets, ticketResponse{
				Code:         t.Code,
				TicketTypeID: t.TicketTypeID,
				Status:       string(t.Status),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminCharges lists charges filtered by the query string.
func HandleAdminCharges(svc ChargeReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseChargeFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		rows, err := svc.ListCharges(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := make([]adminChargeResponse, 0, len(rows))
		for _, row := range rows {
			resp = append(resp, newAdminChargeResponse(row))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminExportCharges serves matching charges as a CSV attachment.
func HandleAdminExportCharges(svc ChargeReporter, clk clock.Clock) http.HandlerFunc {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseChargeFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}

		// Buffered so a failure part way through still yields a proper error.
		var buf bytes.Buffer
		if _, err := svc.ExportCharges(r.Context(), &buf, filter); err != nil {
			writeServiceError(w, r, err)
			return
		}

		filename := fmt.Sprintf("charges-%s.csv", clk.Now().Format("20060102-150405"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func HandleAdminSummary(svc ChargeReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.Summary(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaryResponse{
			VoteRevenue:      s.VoteRevenue,
			TicketRevenue:    s.TicketRevenue,
			TotalRevenue:     s.VoteRevenue + s.TicketRevenue,
			TotalRevenueText: app.FormatMinor(s.VoteRevenue + s.TicketRevenue),
			VotesCast:        s.VotesCast,
			TicketsSold:      s.TicketsSold,
			CompletedCharges: s.CompletedCharges,
			PendingCharges:   s.PendingCharges,
			FailedCharges:    s.FailedCharges,
			FlaggedCharges:   s.FlaggedCharges,
			Categories:       s.Categories,
			Nominees:         s.Nominees,
			TicketTypes:      s.TicketTypes,
		})
	}
}

// parseChargeFilter reads kind, status, subject_id, flagged, from, to, limit
// and offset. Dates are RFC 3339 or YYYY-MM-DD; a bare "to" date includes the
// whole day.
func parseChargeFilter(r *http.Request) (app.ChargeFilter, error) {
	q := r.URL.Query()
	filter := app.ChargeFilter{
		Kind:      domain.ChargeKind(q.Get("kind")),
		Status:    domain.ChargeStatus(q.Get("status")),
		SubjectID: q.Get("subject_id"),
	}
	switch filter.Status {
	case "", domain.ChargeStatusPending, domain.ChargeStatusCompleted, domain.ChargeStatusFailed:
	default:
		return app.ChargeFilter{}, fmt.Errorf("invalid status %q", filter.Status)
	}
	if v := q.Get("flagged"); v != "" {
		flagged, err := strconv.ParseBool(v)
		if err != nil {
			return app.ChargeFilter{}, fmt.Errorf("invalid flagged %q", v)
		}
		filter.Flagged = flagged
	}
	if v := q.Get("from"); v != "" {
		from, _, err := parseFilterTime(v)
		if err != nil {
			return app.ChargeFilter{}, fmt.Errorf("invalid from %q", v)
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, dateOnly, err := parseFilterTime(v)
		if err != nil {
			return app.ChargeFilter{}, fmt.Errorf("invalid to %q", v)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		return app.ChargeFilter{}, fmt.Errorf("invalid limit %q", q.Get("limit"))
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		return app.ChargeFilter{}, fmt.Errorf("invalid offset %q", q.Get("offset"))
	}
	return filter, nil
}

func parseFilterTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, true, err
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

type ticketResponse struct {
	Code         string `json:"code"`
	TicketTypeID string `json:"ticket_type_id"`
	Status       string `json:"status"`
}

type chargeStatusResponse struct {
	Reference  string           `json:"reference"`
	Kind       string           `json:"kind"`
	SubjectID  string           `json:"subject_id"`
	Quantity   int              `json:"quantity"`
	Amount     int64            `json:"amount"`
	Currency   string           `json:"currency"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	Tickets    []ticketResponse `json:"tickets"`
}

type adminChargeResponse struct {
	Reference     string     `json:"reference"`
	Kind          string     `json:"kind"`
	SubjectID     string     `json:"subject_id"`
	SubjectName   string     `json:"subject_name"`
	CategoryName  string     `json:"category_name,omitempty"`
	Quantity      int        `json:"quantity"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PayerName     string     `json:"payer_name"`
	PayerEmail    string     `json:"payer_email"`
	PayerPhone    string     `json:"payer_phone"`
	Status        string     `json:"status"`
	Flag          string     `json:"flag,omitempty"`
	ResolvedVia   string     `json:"resolved_via,omitempty"`
	GatewayAmount int64      `json:"gateway_amount,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func newAdminChargeResponse(row app.ChargeRow) adminChargeResponse {
	return adminChargeResponse{
		Reference:     row.Reference,
		Kind:          string(row.Kind),
		SubjectID:     row.SubjectID,
		SubjectName:   row.SubjectName,
		CategoryName:  row.CategoryName,
		Quantity:      row.Quantity,
		Amount:        row.AmountDue,
		Currency:      row.Currency,
		PayerName:     row.Payer.Name,
		PayerEmail:    row.Payer.Email,
		PayerPhone:    row.Payer.Phone,
		Status:        string(row.Status),
		Flag:          string(row.Flag),
		ResolvedVia:   string(row.ResolvedVia),
		GatewayAmount: row.GatewayAmount,
		CreatedAt:     row.CreatedAt,
		ResolvedAt:    row.ResolvedAt,
	}
}

type summaryResponse struct {
	VoteRevenue      int64  `json:"vote_revenue"`
	TicketRevenue    int64  `json:"ticket_revenue"`
	TotalRevenue     int64  `json:"total_revenue"`
	TotalRevenueText string `json:"total_revenue_display"`
	VotesCast        int64  `json:"votes_cast"`
	TicketsSold      int64  `json:"tickets_sold"`
	CompletedCharges int    `json:"completed_charges"`
	PendingCharges   int    `json:"pending_charges"`
	FailedCharges    int    `json:"failed_charges"`
	FlaggedCharges   int    `json:"flagged_charges"`
	Categories       int    `json:"categories"`
	Nominees         int    `json:"nominees"`
	TicketTypes      int    `json:"ticket_types"`
}
