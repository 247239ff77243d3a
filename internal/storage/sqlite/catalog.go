package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/achingachris/mya-server/internal/domain"
)

func scanTicketType(row scanner) (domain.TicketType, error) {
	var (
		tt        domain.TicketType
		createdAt string
	)
	if err := row.Scan(&tt.ID, &tt.Name, &tt.Description, &tt.UnitPrice, &tt.Capacity, &tt.SoldCount, &createdAt); err != nil {
		return domain.TicketType{}, err
	}
	tt.CreatedAt, _ = parseTime(createdAt)
	return tt, nil
}

func (s *Store) CreateCategory(ctx context.Context, c domain.Category) error {
	res, err := s.run(ctx).ExecContext(ctx, `
INSERT INTO categories (id, name, description, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (name) DO NOTHING`,
		c.ID, c.Name, c.Description, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCategoryAlreadyExists
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var (
		c         domain.Category
		createdAt string
	)
	err := s.run(ctx).QueryRowContext(ctx, `SELECT id, name, description, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, domain.ErrCategoryNotFound
		}
		return domain.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.CreatedAt, _ = parseTime(createdAt)
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.run(ctx).QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c         domain.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt, _ = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateNominee(ctx context.Context, n domain.Nominee) error {
	r := s.run(ctx)
	var exists bool
	if err := r.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)`, n.CategoryID).Scan(&exists); err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return domain.ErrCategoryNotFound
	}
	_, err := r.ExecContext(ctx,
		`INSERT INTO nominees (id, category_id, name, vote_count, created_at) VALUES (?, ?, ?, 0, ?)`,
		n.ID, n.CategoryID, n.Name, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create nominee: %w", err)
	}
	return nil
}

func (s *Store) ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error) {
	query := `SELECT id, category_id, name, vote_count, created_at FROM nominees`
	var args []any
	if categoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY vote_count DESC, name ASC`

	rows, err := s.run(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nominees: %w", err)
	}
	defer rows.Close()

	var out []domain.Nominee
	for rows.Next() {
		var (
			n         domain.Nominee
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.CategoryID, &n.Name, &n.VoteCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan nominee: %w", err)
		}
		n.CreatedAt, _ = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	res, err := s.run(ctx).ExecContext(ctx, `
INSERT INTO ticket_types (id, name, description, unit_price, capacity, sold_count, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)
ON CONFLICT (name) DO NOTHING`,
		tt.ID, tt.Name, tt.Description, tt.UnitPrice, tt.Capacity, formatTime(tt.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create ticket type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTicketTypeAlreadyExists
	}
	return nil
}

func (s *Store) ListTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	rows, err := s.run(ctx).QueryContext(ctx, `
SELECT id, name, description, unit_price, capacity, sold_count, created_at
FROM ticket_types
ORDER BY unit_price ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	defer rows.Close()

	var out []domain.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}
