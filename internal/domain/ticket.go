package domain

import "time"

type TicketStatus string

const (
	TicketStatusUnused    TicketStatus = "unused"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is one admission issued for a completed ticket charge.
type Ticket struct {
	ID           string
	TicketTypeID string
	Reference    string
	Code         string
	Owner        Payer
	Status       TicketStatus
	CreatedAt    time.Time
}
