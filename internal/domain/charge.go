package domain

import "time"

type ChargeKind string

const (
	ChargeKindVote   ChargeKind = "vote"
	ChargeKindTicket ChargeKind = "ticket"
)

func (k ChargeKind) Valid() bool {
	return k == ChargeKindVote || k == ChargeKindTicket
}

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusCompleted ChargeStatus = "completed"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ChargeStatus) Terminal() bool {
	return s == ChargeStatusCompleted || s == ChargeStatusFailed
}

// ChargeFlag marks a completed charge that needs manual operator reconciliation.
type ChargeFlag string

const (
	ChargeFlagNone           ChargeFlag = ""
	ChargeFlagOversold       ChargeFlag = "oversold"
	ChargeFlagSubjectMissing ChargeFlag = "subject_missing"
	ChargeFlagAmountMismatch ChargeFlag = "amount_mismatch"
)

// Channel identifies which path resolved a charge.
type Channel string

const (
	ChannelWebhook   Channel = "webhook"
	ChannelCallback  Channel = "callback"
	ChannelInitiator Channel = "initiator"
)

type Payer struct {
	Name  string
	Email string
	Phone string
}

// Charge is a payable vote or ticket purchase tracked from checkout until the
// gateway reports a final outcome. Reference is the gateway correlation key and
// never changes once assigned.
type Charge struct {
	Reference     string
	Kind          ChargeKind
	SubjectID     string
	Quantity      int
	AmountDue     int64
	Currency      string
	Payer         Payer
	Status        ChargeStatus
	Flag          ChargeFlag
	ResolvedVia   Channel
	GatewayAmount int64
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// ChargeResolution is the terminal transition written for a pending charge.
type ChargeResolution struct {
	Status        ChargeStatus
	Flag          ChargeFlag
	Channel       Channel
	GatewayAmount int64
	ResolvedAt    time.Time
}
