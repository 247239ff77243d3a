package app

import (
	"context"
	"sort"
	"sync"

	"github.com/achingachris/mya-server/internal/domain"
)

// fakeLedger is an in-memory store with serialized transactions that roll
// back on error, close enough to the SQL stores for service tests.
type fakeLedger struct {
	txMu sync.Mutex
	mu   sync.Mutex

	charges     map[string]domain.Charge
	nominees    map[string]domain.Nominee
	ticketTypes map[string]domain.TicketType
	categories  map[string]domain.Category
	tickets     []domain.Ticket

	createChargeCalls int
	takenReferences   map[string]bool
	takenCodes        map[string]bool
	creditErr         error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		charges:         make(map[string]domain.Charge),
		nominees:        make(map[string]domain.Nominee),
		ticketTypes:     make(map[string]domain.TicketType),
		categories:      make(map[string]domain.Category),
		takenReferences: make(map[string]bool),
		takenCodes:      make(map[string]bool),
	}
}

func (f *fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	charges := cloneMap(f.charges)
	nominees := cloneMap(f.nominees)
	ticketTypes := cloneMap(f.ticketTypes)
	tickets := append([]domain.Ticket(nil), f.tickets...)
	codes := cloneMap(f.takenCodes)
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.charges = charges
		f.nominees = nominees
		f.ticketTypes = ticketTypes
		f.tickets = tickets
		f.takenCodes = codes
		f.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeLedger) CreateCharge(_ context.Context, charge domain.Charge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createChargeCalls++
	if _, ok := f.charges[charge.Reference]; ok || f.takenReferences[charge.Reference] {
		return domain.ErrReferenceTaken
	}
	f.charges[charge.Reference] = charge
	return nil
}

func (f *fakeLedger) GetCharge(_ context.Context, reference string) (domain.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	charge, ok := f.charges[reference]
	if !ok {
		return domain.Charge{}, domain.ErrChargeNotFound
	}
	return charge, nil
}

func (f *fakeLedger) GetChargeForUpdate(ctx context.Context, reference string) (domain.Charge, error) {
	return f.GetCharge(ctx, reference)
}

func (f *fakeLedger) ResolveCharge(_ context.Context, reference string, res domain.ChargeResolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	charge, ok := f.charges[reference]
	if !ok {
		return domain.ErrChargeNotFound
	}
	if charge.Status != domain.ChargeStatusPending {
		return domain.ErrChargeAlreadyTerminal
	}
	charge.Status = res.Status
	charge.Flag = res.Flag
	charge.ResolvedVia = res.Channel
	charge.GatewayAmount = res.GatewayAmount
	resolvedAt := res.ResolvedAt
	charge.ResolvedAt = &resolvedAt
	f.charges[reference] = charge
	return nil
}

func (f *fakeLedger) GetNominee(_ context.Context, id string) (domain.Nominee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nominees[id]
	if !ok {
		return domain.Nominee{}, domain.ErrNomineeNotFound
	}
	return n, nil
}

func (f *fakeLedger) GetTicketType(_ context.Context, id string) (domain.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[id]
	if !ok {
		return domain.TicketType{}, domain.ErrTicketTypeNotFound
	}
	return tt, nil
}

func (f *fakeLedger) AddNomineeVotes(_ context.Context, nomineeID string, votes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return f.creditErr
	}
	n, ok := f.nominees[nomineeID]
	if !ok {
		return domain.ErrNomineeNotFound
	}
	n.VoteCount += int64(votes)
	f.nominees[nomineeID] = n
	return nil
}

func (f *fakeLedger) AddTicketsSold(_ context.Context, ticketTypeID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return f.creditErr
	}
	tt, ok := f.ticketTypes[ticketTypeID]
	if !ok {
		return domain.ErrTicketTypeNotFound
	}
	if tt.SoldCount+quantity > tt.Capacity {
		return domain.ErrCapacityExceeded
	}
	tt.SoldCount += quantity
	f.ticketTypes[ticketTypeID] = tt
	return nil
}

func (f *fakeLedger) CreateTicket(_ context.Context, ticket domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenCodes[ticket.Code] {
		return domain.ErrTicketCodeTaken
	}
	f.takenCodes[ticket.Code] = true
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *fakeLedger) CreateCategory(_ context.Context, category domain.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Name == category.Name {
			return domain.ErrCategoryAlreadyExists
		}
	}
	f.categories[category.ID] = category
	return nil
}

func (f *fakeLedger) ListCategories(_ context.Context) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeLedger) GetCategory(_ context.Context, id string) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (f *fakeLedger) CreateNominee(_ context.Context, nominee domain.Nominee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nominees[nominee.ID] = nominee
	return nil
}

func (f *fakeLedger) ListNominees(_ context.Context, categoryID string) ([]domain.Nominee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Nominee
	for _, n := range f.nominees {
		if categoryID == "" || n.CategoryID == categoryID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeLedger) CreateTicketType(_ context.Context, tt domain.TicketType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketTypes[tt.ID] = tt
	return nil
}

func (f *fakeLedger) ListTicketTypes(_ context.Context) ([]domain.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TicketType, 0, len(f.ticketTypes))
	for _, tt := range f.ticketTypes {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeLedger) nominee(id string) domain.Nominee {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nominees[id]
}

func (f *fakeLedger) ticketType(id string) domain.TicketType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticketTypes[id]
}

func (f *fakeLedger) charge(reference string) domain.Charge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charges[reference]
}

func (f *fakeLedger) ticketCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}
