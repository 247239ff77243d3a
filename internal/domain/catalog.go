package domain

import "time"

// Category groups nominees competing for one award.
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Nominee receives votes; VoteCount only grows through completed vote charges.
type Nominee struct {
	ID         string
	CategoryID string
	Name       string
	VoteCount  int64
	CreatedAt  time.Time
}

// TicketType is a sellable ticket class. SoldCount never exceeds Capacity.
type TicketType struct {
	ID          string
	Name        string
	Description string
	UnitPrice   int64
	Capacity    int
	SoldCount   int
	CreatedAt   time.Time
}

func (t TicketType) Remaining() int {
	if t.SoldCount >= t.Capacity {
		return 0
	}
	return t.Capacity - t.SoldCount
}
