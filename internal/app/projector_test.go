package app

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

func TestProjector_Credit(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("vote adds quantity to the nominee", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.nominees["nom-1"] = domain.Nominee{ID: "nom-1", VoteCount: 5}
		p := NewProjector(ledger, clock.NewFixed(now))

		err := p.Credit(context.Background(), domain.Charge{Reference: "vote_1", Kind: domain.ChargeKindVote, SubjectID: "nom-1", Quantity: 30})
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
		if got := ledger.nominee("nom-1").VoteCount; got != 35 {
			t.Fatalf("expected 35 votes, got %d", got)
		}
	})

	t.Run("ticket issues one ticket per unit", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.ticketTypes["tt-1"] = domain.TicketType{ID: "tt-1", Capacity: 10, SoldCount: 1}
		p := NewProjector(ledger, clock.NewFixed(now))
		payer := domain.Payer{Name: "Otieno", Email: "o@example.com", Phone: "0700"}

		err := p.Credit(context.Background(), domain.Charge{Reference: "ticket_1", Kind: domain.ChargeKindTicket, SubjectID: "tt-1", Quantity: 3, Payer: payer})
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
		if got := ledger.ticketType("tt-1").SoldCount; got != 4 {
			t.Fatalf("expected sold 4, got %d", got)
		}
		if len(ledger.tickets) != 3 {
			t.Fatalf("expected 3 tickets, got %d", len(ledger.tickets))
		}
		codeFormat := regexp.MustCompile(`^TICKET-[0-9A-F]{8}$`)
		for _, tk := range ledger.tickets {
			if !codeFormat.MatchString(tk.Code) {
				t.Fatalf("unexpected ticket code %q", tk.Code)
			}
			if tk.Reference != "ticket_1" || tk.Owner != payer || tk.Status != domain.TicketStatusUnused {
				t.Fatalf("unexpected ticket %+v", tk)
			}
			if tk.CreatedAt != now {
				t.Fatalf("expected created_at %v, got %v", now, tk.CreatedAt)
			}
		}
	})

	t.Run("ticket over capacity leaves sold count alone", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.ticketTypes["tt-1"] = domain.TicketType{ID: "tt-1", Capacity: 3, SoldCount: 2}
		p := NewProjector(ledger, clock.NewFixed(now))

		err := p.Credit(context.Background(), domain.Charge{Reference: "ticket_1", Kind: domain.ChargeKindTicket, SubjectID: "tt-1", Quantity: 2})
		if !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		if got := ledger.ticketType("tt-1").SoldCount; got != 2 {
			t.Fatalf("expected sold 2, got %d", got)
		}
		if len(ledger.tickets) != 0 {
			t.Fatalf("expected no tickets issued")
		}
	})

	t.Run("ticket code collision is regenerated", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.ticketTypes["tt-1"] = domain.TicketType{ID: "tt-1", Capacity: 5}
		ledger.takenCodes["TICKET-AAAAAAAA"] = true
		codes := []string{"TICKET-AAAAAAAA", "TICKET-BBBBBBBB"}
		gen := func() string {
			c := codes[0]
			codes = codes[1:]
			return c
		}
		p := NewProjector(ledger, clock.NewFixed(now), WithTicketCodeGenerator(gen))

		err := p.Credit(context.Background(), domain.Charge{Reference: "ticket_1", Kind: domain.ChargeKindTicket, SubjectID: "tt-1", Quantity: 1})
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
		if ledger.tickets[0].Code != "TICKET-BBBBBBBB" {
			t.Fatalf("expected regenerated code, got %q", ledger.tickets[0].Code)
		}
	})

	t.Run("ticket code attempts are bounded", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.ticketTypes["tt-1"] = domain.TicketType{ID: "tt-1", Capacity: 5}
		ledger.takenCodes["TICKET-AAAAAAAA"] = true
		p := NewProjector(ledger, clock.NewFixed(now),
			WithTicketCodeGenerator(func() string { return "TICKET-AAAAAAAA" }),
			WithTicketCodeAttempts(2),
		)

		err := p.Credit(context.Background(), domain.Charge{Reference: "ticket_1", Kind: domain.ChargeKindTicket, SubjectID: "tt-1", Quantity: 1})
		if !errors.Is(err, domain.ErrTicketCodeTaken) {
			t.Fatalf("expected ErrTicketCodeTaken, got %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		p := NewProjector(newFakeLedger(), clock.NewFixed(now))

		err := p.Credit(context.Background(), domain.Charge{Kind: "donation"})
		if !errors.Is(err, domain.ErrInvalidKind) {
			t.Fatalf("expected ErrInvalidKind, got %v", err)
		}
	})
}
