package app

import (
	"context"
	"strings"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

type CatalogRepository interface {
	CreateCategory(ctx context.Context, category domain.Category) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	CreateNominee(ctx context.Context, nominee domain.Nominee) error
	ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error)
	CreateTicketType(ctx context.Context, tt domain.TicketType) error
	ListTicketTypes(ctx context.Context) ([]domain.TicketType, error)
}

// CatalogService manages what can be voted for or bought. Counters on new
// entries always start at zero.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateCategoryInput struct {
	Name        string
	Description string
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CreateCategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Category{}, domain.ErrCategoryNameRequired
	}

	category := domain.Category{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

type CreateNomineeInput struct {
	CategoryID string
	Name       string
}

func (s *CatalogService) CreateNominee(ctx context.Context, in CreateNomineeInput) (domain.Nominee, error) {
	if in.CategoryID == "" {
		return domain.Nominee{}, domain.ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Nominee{}, domain.ErrNomineeNameRequired
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		return domain.Nominee{}, err
	}

	nominee := domain.Nominee{
		ID:         newID(),
		CategoryID: in.CategoryID,
		Name:       name,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateNominee(ctx, nominee); err != nil {
		return domain.Nominee{}, err
	}
	return nominee, nil
}

// ListNominees returns every nominee, or only those of one category when
// categoryID is set.
func (s *CatalogService) ListNominees(ctx context.Context, categoryID string) ([]domain.Nominee, error) {
	return s.repo.ListNominees(ctx, categoryID)
}

type CreateTicketTypeInput struct {
	Name        string
	Description string
	UnitPrice   int64
	Capacity    int
}

func (s *CatalogService) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (domain.TicketType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.TicketType{}, domain.ErrTicketTypeNameRequired
	}
	if in.UnitPrice <= 0 {
		return domain.TicketType{}, domain.ErrInvalidPrice
	}
	if in.Capacity <= 0 {
		return domain.TicketType{}, domain.ErrInvalidCapacity
	}

	tt := domain.TicketType{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		UnitPrice:   in.UnitPrice,
		Capacity:    in.Capacity,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return domain.TicketType{}, err
	}
	return tt, nil
}

func (s *CatalogService) ListTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	return s.repo.ListTicketTypes(ctx)
}

// ListAvailableTicketTypes hides ticket types with nothing left to sell.
func (s *CatalogService) ListAvailableTicketTypes(ctx context.Context) ([]domain.TicketType, error) {
	all, err := s.repo.ListTicketTypes(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]domain.TicketType, 0, len(all))
	for _, tt := range all {
		if tt.Remaining() > 0 {
			available = append(available, tt)
		}
	}
	return available, nil
}
