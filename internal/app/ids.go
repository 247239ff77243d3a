package app

import (
	"strings"

	"github.com/google/uuid"

	"github.com/achingachris/mya-server/internal/domain"
)

// ReferenceGenerator produces gateway correlation references.
type ReferenceGenerator func(kind domain.ChargeKind) string

// TicketCodeGenerator produces human-presentable ticket codes.
type TicketCodeGenerator func() string

// NewReference returns "<kind>_<uuid>". Callers must never parse it back.
func NewReference(kind domain.ChargeKind) string {
	return string(kind) + "_" + uuid.NewString()
}

// NewTicketCode returns TICKET- followed by eight upper-case hex characters.
func NewTicketCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TICKET-" + strings.ToUpper(raw[:8])
}

func newID() string {
	return uuid.NewString()
}
