package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/achingachris/mya-server/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	exportPageSize   = 500
)

// ChargeFilter narrows charge listings. Zero values mean "any".
type ChargeFilter struct {
	Kind      domain.ChargeKind
	Status    domain.ChargeStatus
	SubjectID string
	Flagged   bool
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	// After resumes a listing strictly past a row already seen. Listings are
	// newest first, ordered by (CreatedAt, Reference) descending.
	After *ChargeCursor
}

// ChargeCursor is the sort key of the last row of a page.
type ChargeCursor struct {
	CreatedAt time.Time
	Reference string
}

func cursorOf(row ChargeRow) *ChargeCursor {
	return &ChargeCursor{CreatedAt: row.CreatedAt, Reference: row.Reference}
}

// ChargeRow is a charge joined with the names of what it paid for.
type ChargeRow struct {
	domain.Charge
	SubjectName  string
	CategoryName string
}

type Summary struct {
	VoteRevenue      int64
	TicketRevenue    int64
	VotesCast        int64
	TicketsSold      int64
	CompletedCharges int
	PendingCharges   int
	FailedCharges    int
	FlaggedCharges   int
	Categories       int
	Nominees         int
	TicketTypes      int
}

type ReportRepository interface {
	ListCharges(ctx context.Context, filter ChargeFilter) ([]ChargeRow, error)
	Summary(ctx context.Context) (Summary, error)
	GetCharge(ctx context.Context, reference string) (domain.Charge, error)
	ListTicketsByReference(ctx context.Context, reference string) ([]domain.Ticket, error)
}

// ReportService is the read side used by operators and the charge status page.
type ReportService struct {
	repo ReportRepository
}

func NewReportService(repo ReportRepository) *ReportService {
	return &ReportService{repo: repo}
}

func (s *ReportService) ListCharges(ctx context.Context, filter ChargeFilter) ([]ChargeRow, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListCharges(ctx, filter)
}

func (s *ReportService) Summary(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}

type ChargeDetails struct {
	Charge  domain.Charge
	Tickets []domain.Ticket
}

// ChargeDetails returns a charge and any tickets issued for it.
func (s *ReportService) ChargeDetails(ctx context.Context, reference string) (ChargeDetails, error) {
	if reference == "" {
		return ChargeDetails{}, domain.ErrInvalidReference
	}
	charge, err := s.repo.GetCharge(ctx, reference)
	if err != nil {
		return ChargeDetails{}, err
	}
	details := ChargeDetails{Charge: charge}
	if charge.Kind == domain.ChargeKindTicket {
		details.Tickets, err = s.repo.ListTicketsByReference(ctx, reference)
		if err != nil {
			return ChargeDetails{}, err
		}
	}
	return details, nil
}

var exportHeader = []string{
	"Reference", "Kind", "Subject", "Category",
	"Payer Name", "Payer Email", "Payer Phone",
	"Quantity", "Amount", "Currency", "Status", "Flag", "Created At",
}

// ExportCharges writes every charge matching filter as CSV, paging through the
// store by cursor so rows created or resolved mid-export neither repeat nor
// push others out of the listing. Limit, Offset and After on the filter are
// ignored.
func (s *ReportService) ExportCharges(ctx context.Context, w io.Writer, filter ChargeFilter) (int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return 0, domain.ErrInvalidKind
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}

	written := 0
	filter.Limit = exportPageSize
	filter.Offset = 0
	filter.After = nil
	for {
		rows, err := s.repo.ListCharges(ctx, filter)
		if err != nil {
			return written, fmt.Errorf("list charges: %w", err)
		}
		for _, row := range rows {
			if err := cw.Write(exportRecord(row)); err != nil {
				return written, err
			}
			written++
		}
		if len(rows) < exportPageSize {
			break
		}
		filter.After = cursorOf(rows[len(rows)-1])
	}
	cw.Flush()
	return written, cw.Error()
}

func exportRecord(row ChargeRow) []string {
	return []string{
		row.Reference,
		string(row.Kind),
		row.SubjectName,
		row.CategoryName,
		row.Payer.Name,
		row.Payer.Email,
		row.Payer.Phone,
		strconv.Itoa(row.Quantity),
		FormatMinor(row.AmountDue),
		row.Currency,
		string(row.Status),
		string(row.Flag),
		row.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FormatMinor renders minor units as a decimal major-unit amount.
func FormatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/domain.MinorUnitsPerMajor, amount%domain.MinorUnitsPerMajor)
}
