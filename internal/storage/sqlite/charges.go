package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/achingachris/mya-server/internal/domain"
)

const chargeColumns = `reference, kind, subject_id, quantity, amount_due, currency,
	payer_name, payer_email, payer_phone, status, flag, resolved_via, gateway_amount, created_at, resolved_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCharge(row scanner, extra ...any) (domain.Charge, error) {
	var (
		c          domain.Charge
		createdAt  string
		resolvedAt sql.NullString
	)
	dest := []any{
		&c.Reference, &c.Kind, &c.SubjectID, &c.Quantity, &c.AmountDue, &c.Currency,
		&c.Payer.Name, &c.Payer.Email, &c.Payer.Phone,
		&c.Status, &c.Flag, &c.ResolvedVia, &c.GatewayAmount, &createdAt, &resolvedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Charge{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Charge{}, fmt.Errorf("parse created_at: %w", err)
	}
	if resolvedAt.Valid {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return domain.Charge{}, fmt.Errorf("parse resolved_at: %w", err)
		}
		c.ResolvedAt = &t
	}
	return c, nil
}

func (s *Store) CreateCharge(ctx context.Context, c domain.Charge) error {
	const stmt = `
INSERT INTO charges (reference, kind, subject_id, quantity, amount_due, currency,
	payer_name, payer_email, payer_phone, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
ON CONFLICT (reference) DO NOTHING`

	res, err := s.run(ctx).ExecContext(ctx, stmt,
		c.Reference, string(c.Kind), c.SubjectID, c.Quantity, c.AmountDue, c.Currency,
		c.Payer.Name, c.Payer.Email, c.Payer.Phone, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReferenceTaken
	}
	return nil
}

func (s *Store) GetCharge(ctx context.Context, reference string) (domain.Charge, error) {
	c, err := scanCharge(s.run(ctx).QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM charges WHERE reference = ?`, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Charge{}, domain.ErrChargeNotFound
		}
		return domain.Charge{}, fmt.Errorf("get charge: %w", err)
	}
	return c, nil
}

// GetChargeForUpdate is GetCharge: the single connection already serializes
// transactions.
func (s *Store) GetChargeForUpdate(ctx context.Context, reference string) (domain.Charge, error) {
	return s.GetCharge(ctx, reference)
}

func (s *Store) ResolveCharge(ctx context.Context, reference string, res domain.ChargeResolution) error {
	const stmt = `
UPDATE charges
SET status = ?, flag = ?, resolved_via = ?, gateway_amount = ?, resolved_at = ?
WHERE reference = ? AND status = 'pending'`

	r := s.run(ctx)
	result, err := r.ExecContext(ctx, stmt,
		string(res.Status), string(res.Flag), string(res.Channel), res.GatewayAmount, formatTime(res.ResolvedAt), reference,
	)
	if err != nil {
		return fmt.Errorf("resolve charge: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}
	var exists bool
	if err := r.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM charges WHERE reference = ?)`, reference).Scan(&exists); err != nil {
		return fmt.Errorf("check charge: %w", err)
	}
	if !exists {
		return domain.ErrChargeNotFound
	}
	return domain.ErrChargeAlreadyTerminal
}

func (s *Store) GetNominee(ctx context.Context, id string) (domain.Nominee, error) {
	var (
		n         domain.Nominee
		createdAt string
	)
	err := s.run(ctx).QueryRowContext(ctx,
		`SELECT id, category_id, name, vote_count, created_at FROM nominees WHERE id = ?`, id,
	).Scan(&n.ID, &n.CategoryID, &n.Name, &n.VoteCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Nominee{}, domain.ErrNomineeNotFound
		}
		return domain.Nominee{}, fmt.Errorf("get nominee: %w", err)
	}
	n.CreatedAt, _ = parseTime(createdAt)
	return n, nil
}

func (s *Store) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	tt, err := scanTicketType(s.run(ctx).QueryRowContext(ctx,
		`SELECT id, name, description, unit_price, capacity, sold_count, created_at FROM ticket_types WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TicketType{}, domain.ErrTicketTypeNotFound
		}
		return domain.TicketType{}, fmt.Errorf("get ticket type: %w", err)
	}
	return tt, nil
}

func (s *Store) AddNomineeVotes(ctx context.Context, nomineeID string, votes int) error {
	res, err := s.run(ctx).ExecContext(ctx, `UPDATE nominees SET vote_count = vote_count + ? WHERE id = ?`, votes, nomineeID)
	if err != nil {
		return fmt.Errorf("add nominee votes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNomineeNotFound
	}
	return nil
}

func (s *Store) AddTicketsSold(ctx context.Context, ticketTypeID string, quantity int) error {
	r := s.run(ctx)
	res, err := r.ExecContext(ctx,
		`UPDATE ticket_types SET sold_count = sold_count + ? WHERE id = ? AND sold_count + ? <= capacity`,
		quantity, ticketTypeID, quantity,
	)
	if err != nil {
		return fmt.Errorf("add tickets sold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists bool
	if err := r.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ticket_types WHERE id = ?)`, ticketTypeID).Scan(&exists); err != nil {
		return fmt.Errorf("check ticket type: %w", err)
	}
	if !exists {
		return domain.ErrTicketTypeNotFound
	}
	return domain.ErrCapacityExceeded
}

func (s *Store) CreateTicket(ctx context.Context, t domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, ticket_type_id, reference, code, owner_name, owner_email, owner_phone, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (code) DO NOTHING`

	res, err := s.run(ctx).ExecContext(ctx, stmt,
		t.ID, t.TicketTypeID, t.Reference, t.Code,
		t.Owner.Name, t.Owner.Email, t.Owner.Phone, string(t.Status), formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTicketCodeTaken
	}
	return nil
}

func (s *Store) ListTicketsByReference(ctx context.Context, reference string) ([]domain.Ticket, error) {
	rows, err := s.run(ctx).QueryContext(ctx, `
SELECT id, ticket_type_id, reference, code, owner_name, owner_email, owner_phone, status, created_at
FROM tickets
WHERE reference = ?
ORDER BY created_at ASC, code ASC`, reference)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var (
			t         domain.Ticket
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.TicketTypeID, &t.Reference, &t.Code,
			&t.Owner.Name, &t.Owner.Email, &t.Owner.Phone, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.CreatedAt, _ = parseTime(createdAt)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
