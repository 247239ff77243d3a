package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/achingachris/mya-server/internal/app"
)

func (s *Store) ListCharges(ctx context.Context, f app.ChargeFilter) ([]app.ChargeRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where, args = append(where, "c.kind = ?"), append(args, string(f.Kind))
	}
	if f.Status != "" {
		where, args = append(where, "c.status = ?"), append(args, string(f.Status))
	}
	if f.SubjectID != "" {
		where, args = append(where, "c.subject_id = ?"), append(args, f.SubjectID)
	}
	if f.Flagged {
		where = append(where, "c.flag <> ''")
	}
	if f.From != nil {
		where, args = append(where, "c.created_at >= ?"), append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where, args = append(where, "c.created_at < ?"), append(args, formatTime(*f.To))
	}
	if f.After != nil {
		where = append(where, "(c.created_at, c.reference) < (?, ?)")
		args = append(args, formatTime(f.After.CreatedAt), f.After.Reference)
	}

	query := `
SELECT c.reference, c.kind, c.subject_id, c.quantity, c.amount_due, c.currency,
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
	query += "\nORDER BY c.created_at DESC, c.reference DESC\nLIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.run(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var out []app.ChargeRow
	for rows.Next() {
		var row app.ChargeRow
		charge, err := scanCharge(rows, &row.SubjectName, &row.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		row.Charge = charge
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (app.Summary, error) {
	const query = `
SELECT
	COALESCE(SUM(CASE WHEN status = 'completed' AND kind = 'vote' THEN amount_due END), 0),
	COALESCE(SUM(CASE WHEN status = 'completed' AND kind = 'ticket' THEN amount_due END), 0),
	COALESCE(SUM(CASE WHEN status = 'completed' AND kind = 'vote' AND flag <> 'subject_missing' THEN quantity END), 0),
	COUNT(CASE WHEN status = 'completed' THEN 1 END),
	COUNT(CASE WHEN status = 'pending' THEN 1 END),
	COUNT(CASE WHEN status = 'failed' THEN 1 END),
	COUNT(CASE WHEN flag <> '' THEN 1 END),
	(SELECT COALESCE(SUM(sold_count), 0) FROM ticket_types),
	(SELECT COUNT(*) FROM categories),
	(SELECT COUNT(*) FROM nominees),
	(SELECT COUNT(*) FROM ticket_types)
FROM charges`

	var sum app.Summary
	err := s.run(ctx).QueryRowContext(ctx, query).Scan(
		&sum.VoteRevenue, &sum.TicketRevenue, &sum.VotesCast,
		&sum.CompletedCharges, &sum.PendingCharges, &sum.FailedCharges, &sum.FlaggedCharges,
		&sum.TicketsSold, &sum.Categories, &sum.Nominees, &sum.TicketTypes,
	)
	if err != nil {
		return app.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}
