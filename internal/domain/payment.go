package domain

// PaymentOutcome is the gateway's view of a transaction.
type PaymentOutcome string

const (
	PaymentSucceeded  PaymentOutcome = "success"
	PaymentFailed     PaymentOutcome = "failed"
	PaymentAbandoned  PaymentOutcome = "abandoned"
	PaymentProcessing PaymentOutcome = "processing"
)

// Final reports whether the outcome can resolve a pending charge.
func (o PaymentOutcome) Final() bool {
	switch o {
	case PaymentSucceeded, PaymentFailed, PaymentAbandoned:
		return true
	default:
		return false
	}
}

type PaymentMetadata struct {
	Kind      ChargeKind `json:"kind"`
	SubjectID string     `json:"subject_id"`
	Reference string     `json:"reference"`
}

type PaymentSessionRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    PaymentMetadata
}

type PaymentSession struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// PaymentEvent is a verified push notification from the gateway.
type PaymentEvent struct {
	Type      string
	Reference string
	Outcome   PaymentOutcome
	Amount    int64
	Metadata  *PaymentMetadata
}

// PaymentVerification is the gateway's authoritative answer for a reference.
type PaymentVerification struct {
	Reference string
	Outcome   PaymentOutcome
	Amount    int64
	Metadata  *PaymentMetadata
}
