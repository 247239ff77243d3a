package app

import (
	"context"
	"errors"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

// ProjectionRepository holds the only write paths for aggregate counters.
type ProjectionRepository interface {
	// AddNomineeVotes increments a nominee's vote count.
	AddNomineeVotes(ctx context.Context, nomineeID string, votes int) error
	// AddTicketsSold increments sold count only while it stays within capacity,
	// as a single conditional update.
	AddTicketsSold(ctx context.Context, ticketTypeID string, quantity int) error
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
}

// Projector applies the counter increments of a completed charge.
type Projector struct {
	repo         ProjectionRepository
	clock        clock.Clock
	newCode      TicketCodeGenerator
	codeAttempts int
}

const defaultCodeAttempts = 5

func NewProjector(repo ProjectionRepository, clk clock.Clock, opts ...ProjectorOption) *Projector {
	p := &Projector{
		repo:         repo,
		clock:        clk,
		newCode:      NewTicketCode,
		codeAttempts: defaultCodeAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ProjectorOption func(*Projector)

func WithTicketCodeGenerator(gen TicketCodeGenerator) ProjectorOption {
	return func(p *Projector) {
		if gen != nil {
			p.newCode = gen
		}
	}
}

func WithTicketCodeAttempts(n int) ProjectorOption {
	return func(p *Projector) {
		if n > 0 {
			p.codeAttempts = n
		}
	}
}

// Credit adds the charge quantity to its subject. For tickets it returns
// ErrCapacityExceeded without touching the sold count when the purchase no
// longer fits, and issues one ticket per unit otherwise.
func (p *Projector) Credit(ctx context.Context, charge domain.Charge) error {
	switch charge.Kind {
	case domain.ChargeKindVote:
		return p.repo.AddNomineeVotes(ctx, charge.SubjectID, charge.Quantity)
	case domain.ChargeKindTicket:
		if err := p.repo.AddTicketsSold(ctx, charge.SubjectID, charge.Quantity); err != nil {
			return err
		}
		for i := 0; i < charge.Quantity; i++ {
			if err := p.issueTicket(ctx, charge); err != nil {
				return err
			}
		}
		return nil
	default:
		return domain.ErrInvalidKind
	}
}

func (p *Projector) issueTicket(ctx context.Context, charge domain.Charge) error {
	for attempt := 0; attempt < p.codeAttempts; attempt++ {
		err := p.repo.CreateTicket(ctx, domain.Ticket{
			ID:           newID(),
			TicketTypeID: charge.SubjectID,
			Reference:    charge.Reference,
			Code:         p.newCode(),
			Owner:        charge.Payer,
			Status:       domain.TicketStatusUnused,
			CreatedAt:    p.clock.Now(),
		})
		if !errors.Is(err, domain.ErrTicketCodeTaken) {
			return err
		}
	}
	return domain.ErrTicketCodeTaken
}
