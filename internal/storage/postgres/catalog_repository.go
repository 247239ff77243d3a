package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/achingachris/mya-server/internal/domain"
)

type CatalogRepository struct {
	conn
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{conn{pool: pool}}
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c domain.Category) error {
	const stmt = `
INSERT INTO categories (id, name, description, created_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.exec(ctx, stmt, c.ID, c.Name, c.Description, c.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrCategoryAlreadyExists
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	if !validID(id) {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	var c domain.Category
	err := r.queryRow(ctx, `SELECT id::text, name, description, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Category{}, domain.ErrCategoryNotFound
		}
		return domain.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.query(ctx, `SELECT id::text, name, description, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate categories: %w", rows.Err())
	}
	return categories, nil
}

func (r *CatalogRepository) CreateNominee(ctx context.Context, n domain.Nominee) error {
	const stmt = `
INSERT INTO nominees (id, category_id, name, vote_count, created_at)
VALUES ($1, $2, $3, 0, $4)`
	_, err := r.exec(ctx, stmt, n.ID, n.CategoryID, n.Name, n.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrCategoryNotFound
		}
		return fmt.Errorf("create nominee: %w", err)
	}
	return nil
}

// ListNominees orders by votes so the public board reads top-down.
func (r *CatalogRepository) ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error) {
	query := `SELECT id::text, category_id::text, name, vote_count, created_at FROM nominees`
	var args []any
	if categoryID != "" {
		if !validID(categoryID) {
			return nil, domain.ErrInvalidID
		}
		query += ` WHERE category_id = $1`
		args = append(args, categoryID)
	}
	query += ` ORDER BY vote_count DESC, name ASC`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nominees: %w", err)
	}
	defer rows.Close()

	var nominees []domain.Nominee
	for rows.Next() {
		var n domain.Nominee
		if err := rows.Scan(&n.ID, &n.CategoryID, &n.Name, &n.VoteCount, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan nominee: %w", err)
		}
		nominees = append(nominees, n)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate nominees: %w", rows.Err())
	}
	return nominees, nil
}

func (r *CatalogRepository) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	const stmt = `
INSERT INTO ticket_types (id, name, description, unit_price, capacity, sold_count, created_at)
VALUES ($1, $2, $3, $4, $5, 0, $6)`
	_, err := r.exec(ctx, stmt, tt.ID, tt.Name, tt.Description, tt.UnitPrice, tt.Capacity, tt.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrTicketTypeAlreadyExists
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidCapacity
		}
		return fmt.Errorf("create ticket type: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	const query = `
SELECT id::text, name, description, unit_price, capacity, sold_count, created_at
FROM ticket_types
ORDER BY unit_price ASC, name ASC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	defer rows.Close()

	var types []domain.TicketType
	for rows.Next() {
		var tt domain.TicketType
		if err := rows.Scan(&tt.ID, &tt.Name, &tt.Description, &tt.UnitPrice, &tt.Capacity, &tt.SoldCount, &tt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		types = append(types, tt)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ticket types: %w", rows.Err())
	}
	return types, nil
}
