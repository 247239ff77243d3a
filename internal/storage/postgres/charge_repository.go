package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/achingachris/mya-server/internal/domain"
)

// ChargeRepository stores charges and applies their aggregate increments.
type ChargeRepository struct {
	conn
}

func NewChargeRepository(pool *pgxpool.Pool) *ChargeRepository {
	return &ChargeRepository{conn{pool: pool}}
}

func (r *ChargeRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const chargeColumns = `reference, kind, subject_id::text, quantity, amount_due, currency,
	payer_name, payer_email, payer_phone, status, flag, resolved_via, gateway_amount, created_at, resolved_at`

func scanCharge(row pgx.Row) (domain.Charge, error) {
	var c domain.Charge
	err := row.Scan(
		&c.Reference, &c.Kind, &c.SubjectID, &c.Quantity, &c.AmountDue, &c.Currency,
		&c.Payer.Name, &c.Payer.Email, &c.Payer.Phone,
		&c.Status, &c.Flag, &c.ResolvedVia, &c.GatewayAmount, &c.CreatedAt, &c.ResolvedAt,
	)
	return c, err
}

// CreateCharge inserts a pending charge. A taken reference is reported as
// ErrReferenceTaken without raising a statement error.
func (r *ChargeRepository) CreateCharge(ctx context.Context, c domain.Charge) error {
	if !validID(c.SubjectID) {
		return domain.ErrInvalidID
	}
	const stmt = `
INSERT INTO charges (reference, kind, subject_id, quantity, amount_due, currency,
	payer_name, payer_email, payer_phone, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
ON CONFLICT (reference) DO NOTHING`

	tag, err := r.exec(ctx, stmt,
		c.Reference, c.Kind, c.SubjectID, c.Quantity, c.AmountDue, c.Currency,
		c.Payer.Name, c.Payer.Email, c.Payer.Phone, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReferenceTaken
	}
	return nil
}

func (r *ChargeRepository) GetCharge(ctx context.Context, reference string) (domain.Charge, error) {
	return r.getCharge(ctx, `SELECT `+chargeColumns+` FROM charges WHERE reference = $1`, reference)
}

// GetChargeForUpdate locks the charge row until the surrounding transaction ends.
func (r *ChargeRepository) GetChargeForUpdate(ctx context.Context, reference string) (domain.Charge, error) {
	return r.getCharge(ctx, `SELECT `+chargeColumns+` FROM charges WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *ChargeRepository) getCharge(ctx context.Context, query, reference string) (domain.Charge, error) {
	c, err := scanCharge(r.queryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Charge{}, domain.ErrChargeNotFound
		}
		return domain.Charge{}, fmt.Errorf("get charge: %w", err)
	}
	return c, nil
}

// ResolveCharge moves a pending charge to its terminal status.
func (r *ChargeRepository) ResolveCharge(ctx context.Context, reference string, res domain.ChargeResolution) error {
	const stmt = `
UPDATE charges
SET status = $2, flag = $3, resolved_via = $4, gateway_amount = $5, resolved_at = $6
WHERE reference = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, reference, res.Status, res.Flag, res.Channel, res.GatewayAmount, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("resolve charge: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM charges WHERE reference = $1)`, reference).Scan(&exists); err != nil {
		return fmt.Errorf("check charge: %w", err)
	}
	if !exists {
		return domain.ErrChargeNotFound
	}
	return domain.ErrChargeAlreadyTerminal
}

func (r *ChargeRepository) GetNominee(ctx context.Context, id string) (domain.Nominee, error) {
	if !validID(id) {
		return domain.Nominee{}, domain.ErrNomineeNotFound
	}
	const query = `SELECT id::text, category_id::text, name, vote_count, created_at FROM nominees WHERE id = $1`
	var n domain.Nominee
	err := r.queryRow(ctx, query, id).Scan(&n.ID, &n.CategoryID, &n.Name, &n.VoteCount, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Nominee{}, domain.ErrNomineeNotFound
		}
		return domain.Nominee{}, fmt.Errorf("get nominee: %w", err)
	}
	return n, nil
}

func (r *ChargeRepository) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	if !validID(id) {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	const query = `
SELECT id::text, name, description, unit_price, capacity, sold_count, created_at
FROM ticket_types WHERE id = $1`
	var tt domain.TicketType
	err := r.queryRow(ctx, query, id).
		Scan(&tt.ID, &tt.Name, &tt.Description, &tt.UnitPrice, &tt.Capacity, &tt.SoldCount, &tt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketType{}, domain.ErrTicketTypeNotFound
		}
		return domain.TicketType{}, fmt.Errorf("get ticket type: %w", err)
	}
	return tt, nil
}

func (r *ChargeRepository) AddNomineeVotes(ctx context.Context, nomineeID string, votes int) error {
	if !validID(nomineeID) {
		return domain.ErrNomineeNotFound
	}
	tag, err := r.exec(ctx, `UPDATE nominees SET vote_count = vote_count + $2 WHERE id = $1`, nomineeID, votes)
	if err != nil {
		return fmt.Errorf("add nominee votes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNomineeNotFound
	}
	return nil
}

// AddTicketsSold is a single conditional update, so concurrent purchases can
// never push sold_count past capacity.
func (r *ChargeRepository) AddTicketsSold(ctx context.Context, ticketTypeID string, quantity int) error {
	if !validID(ticketTypeID) {
		return domain.ErrTicketTypeNotFound
	}
	const stmt = `
UPDATE ticket_types
SET sold_count = sold_count + $2
WHERE id = $1 AND sold_count + $2 <= capacity`

	tag, err := r.exec(ctx, stmt, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("add tickets sold: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ticket_types WHERE id = $1)`, ticketTypeID).Scan(&exists); err != nil {
		return fmt.Errorf("check ticket type: %w", err)
	}
	if !exists {
		return domain.ErrTicketTypeNotFound
	}
	return domain.ErrCapacityExceeded
}

func (r *ChargeRepository) CreateTicket(ctx context.Context, t domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, ticket_type_id, reference, code, owner_name, owner_email, owner_phone, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO NOTHING`

	tag, err := r.exec(ctx, stmt,
		t.ID, t.TicketTypeID, t.Reference, t.Code,
		t.Owner.Name, t.Owner.Email, t.Owner.Phone, t.Status, t.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrTicketTypeNotFound
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketCodeTaken
	}
	return nil
}

func (r *ChargeRepository) ListTicketsByReference(ctx context.Context, reference string) ([]domain.Ticket, error) {
	const query = `
SELECT id::text, ticket_type_id::text, reference, code, owner_name, owner_email, owner_phone, status, created_at
FROM tickets
WHERE reference = $1
ORDER BY created_at ASC, code ASC`

	rows, err := r.query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.TicketTypeID, &t.Reference, &t.Code,
			&t.Owner.Name, &t.Owner.Email, &t.Owner.Phone, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate tickets: %w", rows.Err())
	}
	return tickets, nil
}
