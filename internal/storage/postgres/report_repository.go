package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
)

// ReportRepository serves the operator read side.
type ReportRepository struct {
	*ChargeRepository
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{NewChargeRepository(pool)}
}

func (r *ReportRepository) ListCharges(ctx context.Context, f app.ChargeFilter) ([]app.ChargeRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Kind != "" {
		add("c.kind = $%d", f.Kind)
	}
	if f.Status != "" {
		add("c.status = $%d", f.Status)
	}
	if f.SubjectID != "" {
		if !validID(f.SubjectID) {
			return nil, domain.ErrInvalidID
		}
		add("c.subject_id = $%d", f.SubjectID)
	}
	if f.Flagged {
		where = append(where, "c.flag <> ''")
	}
	if f.From != nil {
		add("c.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("c.created_at < $%d", *f.To)
	}
	if f.After != nil {
		args = append(args, f.After.CreatedAt, f.After.Reference)
		where = append(where, fmt.Sprintf("(c.created_at, c.reference) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `
SELECT c.reference, c.kind, c.subject_id::text, c.quantity, c.amount_due, c.currency,
	c.payer_name, c.payer_email, c.payer_phone, c.status, c.flag, c.resolved_via,
	c.gateway_amount, c.created_at, c.resolved_at,
	COALESCE(n.name, tt.name, ''), COALESCE(cat.name, '')
FROM charges c
LEFT JOIN nominees n ON c.kind = 'vote' AND n.id = c.subject_id
LEFT JOIN categories cat ON cat.id = n.category_id
LEFT JOIN ticket_types tt ON c.kind = 'ticket' AND tt.id = c.subject_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf("\nORDER BY c.created_at DESC, c.reference DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var out []app.ChargeRow
	for rows.Next() {
		var row app.ChargeRow
		c := &row.Charge
		if err := rows.Scan(
			&c.Reference, &c.Kind, &c.SubjectID, &c.Quantity, &c.AmountDue, &c.Currency,
			&c.Payer.Name, &c.Payer.Email, &c.Payer.Phone, &c.Status, &c.Flag, &c.ResolvedVia,
			&c.GatewayAmount, &c.CreatedAt, &c.ResolvedAt,
			&row.SubjectName, &row.CategoryName,
		); err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate charges: %w", rows.Err())
	}
	return out, nil
}

func (r *ReportRepository) Summary(ctx context.Context) (app.Summary, error) {
	const query = `
SELECT
	COALESCE(SUM(amount_due) FILTER (WHERE status = 'completed' AND kind = 'vote'), 0)::bigint,
	COALESCE(SUM(amount_due) FILTER (WHERE status = 'completed' AND kind = 'ticket'), 0)::bigint,
	COALESCE(SUM(quantity) FILTER (WHERE status = 'completed' AND kind = 'vote' AND flag <> 'subject_missing'), 0)::bigint,
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COUNT(*) FILTER (WHERE flag <> ''),
	(SELECT COALESCE(SUM(sold_count), 0)::bigint FROM ticket_types),
	(SELECT COUNT(*) FROM categories),
	(SELECT COUNT(*) FROM nominees),
	(SELECT COUNT(*) FROM ticket_types)
FROM charges`

	var s app.Summary
	err := r.queryRow(ctx, query).Scan(
		&s.VoteRevenue, &s.TicketRevenue, &s.VotesCast,
		&s.CompletedCharges, &s.PendingCharges, &s.FailedCharges, &s.FlaggedCharges,
		&s.TicketsSold, &s.Categories, &s.Nominees, &s.TicketTypes,
	)
	if err != nil {
		return app.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}
