package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

type CheckoutRepository interface {
	CreateCharge(ctx context.Context, charge domain.Charge) error
	ResolveCharge(ctx context.Context, reference string, res domain.ChargeResolution) error
	GetNominee(ctx context.Context, id string) (domain.Nominee, error)
	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
}

// SessionOpener creates hosted checkout sessions at the payment gateway.
type SessionOpener interface {
	InitializeTransaction(ctx context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error)
}

type CheckoutService struct {
	repo              CheckoutRepository
	gateway           SessionOpener
	clock             clock.Clock
	logger            *slog.Logger
	newReference      ReferenceGenerator
	referenceAttempts int
	maxTickets        int
	currency          string
	callbackURL       string
	gatewayTimeout    time.Duration
}

const (
	defaultReferenceAttempts = 5
	defaultMaxTickets        = 10
	defaultGatewayTimeout    = 15 * time.Second
)

func NewCheckoutService(repo CheckoutRepository, gateway SessionOpener, clk clock.Clock, opts ...CheckoutOption) *CheckoutService {
	svc := &CheckoutService{
		repo:              repo,
		gateway:           gateway,
		clock:             clk,
		logger:            slog.Default(),
		newReference:      NewReference,
		referenceAttempts: defaultReferenceAttempts,
		maxTickets:        defaultMaxTickets,
		currency:          domain.DefaultCurrency,
		gatewayTimeout:    defaultGatewayTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CheckoutOption func(*CheckoutService)

func WithReferenceGenerator(gen ReferenceGenerator) CheckoutOption {
	return func(s *CheckoutService) {
		if gen != nil {
			s.newReference = gen
		}
	}
}

// WithReferenceAttempts bounds how many references are tried before giving up.
func WithReferenceAttempts(n int) CheckoutOption {
	return func(s *CheckoutService) {
		if n > 0 {
			s.referenceAttempts = n
		}
	}
}

func WithMaxTicketsPerCharge(n int) CheckoutOption {
	return func(s *CheckoutService) {
		if n > 0 {
			s.maxTickets = n
		}
	}
}

func WithCurrency(currency string) CheckoutOption {
	return func(s *CheckoutService) {
		if currency != "" {
			s.currency = strings.ToUpper(currency)
		}
	}
}

// WithCallbackURL sets where the gateway sends the payer after checkout.
func WithCallbackURL(url string) CheckoutOption {
	return func(s *CheckoutService) {
		s.callbackURL = url
	}
}

func WithGatewayTimeout(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.gatewayTimeout = d
		}
	}
}

func WithCheckoutLogger(logger *slog.Logger) CheckoutOption {
	return func(s *CheckoutService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type InitiateInput struct {
	Kind      domain.ChargeKind
	SubjectID string
	Quantity  int
	Payer     domain.Payer
}

type InitiateResult struct {
	Reference   string
	CheckoutURL string
	Charge      domain.Charge
}

// Initiate records a pending charge and opens a hosted checkout session for it.
// The charge is stored before the gateway is called so that a notification
// racing the response still finds it.
func (s *CheckoutService) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	payer, err := normalizePayer(in.Payer)
	if err != nil {
		return InitiateResult{}, err
	}
	if strings.TrimSpace(in.SubjectID) == "" {
		return InitiateResult{}, domain.ErrInvalidID
	}

	amount, err := s.amountDue(ctx, in)
	if err != nil {
		return InitiateResult{}, err
	}

	charge := domain.Charge{
		Kind:      in.Kind,
		SubjectID: in.SubjectID,
		Quantity:  in.Quantity,
		AmountDue: amount,
		Currency:  s.currency,
		Payer:     payer,
		Status:    domain.ChargeStatusPending,
		CreatedAt: s.clock.Now(),
	}

	charge, err = s.persist(ctx, charge)
	if err != nil {
		return InitiateResult{}, err
	}

	session, err := s.openSession(ctx, charge)
	if err != nil {
		s.logger.Warn("checkout session failed",
			"reference", charge.Reference,
			"kind", charge.Kind,
			"error", err,
		)
		s.failCharge(ctx, charge.Reference)
		return InitiateResult{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	s.logger.Info("checkout initiated",
		"reference", charge.Reference,
		"kind", charge.Kind,
		"subject_id", charge.SubjectID,
		"quantity", charge.Quantity,
		"amount", charge.AmountDue,
	)

	return InitiateResult{
		Reference:   charge.Reference,
		CheckoutURL: session.AuthorizationURL,
		Charge:      charge,
	}, nil
}

func (s *CheckoutService) amountDue(ctx context.Context, in InitiateInput) (int64, error) {
	switch in.Kind {
	case domain.ChargeKindVote:
		price, err := domain.VotePrice(in.Quantity)
		if err != nil {
			return 0, err
		}
		if _, err := s.repo.GetNominee(ctx, in.SubjectID); err != nil {
			return 0, err
		}
		return price, nil
	case domain.ChargeKindTicket:
		if in.Quantity <= 0 || in.Quantity > s.maxTickets {
			return 0, domain.ErrInvalidQuantity
		}
		tt, err := s.repo.GetTicketType(ctx, in.SubjectID)
		if err != nil {
			return 0, err
		}
		// Advisory only; the projector enforces capacity when the charge completes.
		if tt.SoldCount+in.Quantity > tt.Capacity {
			return 0, domain.ErrSoldOut
		}
		amount := tt.UnitPrice * int64(in.Quantity)
		if amount <= 0 {
			return 0, domain.ErrInvalidPrice
		}
		return amount, nil
	default:
		return 0, domain.ErrInvalidKind
	}
}

func (s *CheckoutService) persist(ctx context.Context, charge domain.Charge) (domain.Charge, error) {
	for attempt := 0; attempt < s.referenceAttempts; attempt++ {
		charge.Reference = s.newReference(charge.Kind)
		err := s.repo.CreateCharge(ctx, charge)
		if err == nil {
			return charge, nil
		}
		if !errors.Is(err, domain.ErrReferenceTaken) {
			return domain.Charge{}, err
		}
		s.logger.Warn("reference collision, regenerating", "reference", charge.Reference, "attempt", attempt+1)
	}
	return domain.Charge{}, domain.ErrReferenceGenerationFailed
}

func (s *CheckoutService) openSession(ctx context.Context, charge domain.Charge) (domain.PaymentSession, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.InitializeTransaction(sessionCtx, domain.PaymentSessionRequest{
		Email:       charge.Payer.Email,
		AmountMinor: charge.AmountDue,
		Reference:   charge.Reference,
		Currency:    charge.Currency,
		CallbackURL: s.callbackURL,
		Metadata: domain.PaymentMetadata{
			Kind:      charge.Kind,
			SubjectID: charge.SubjectID,
			Reference: charge.Reference,
		},
	})
	if err != nil {
		return domain.PaymentSession{}, err
	}
	if session.AuthorizationURL == "" {
		return domain.PaymentSession{}, errors.New("gateway returned no authorization url")
	}
	return session, nil
}

func (s *CheckoutService) failCharge(ctx context.Context, reference string) {
	err := s.repo.ResolveCharge(context.WithoutCancel(ctx), reference, domain.ChargeResolution{
		Status:     domain.ChargeStatusFailed,
		Channel:    domain.ChannelInitiator,
		ResolvedAt: s.clock.Now(),
	})
	if err == nil || errors.Is(err, domain.ErrChargeAlreadyTerminal) {
		return
	}
	s.logger.Error("could not mark charge failed after gateway error",
		"alert", true,
		"reference", reference,
		"error", err,
	)
}

func normalizePayer(p domain.Payer) (domain.Payer, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Name == "" || p.Email == "" || p.Phone == "" {
		return domain.Payer{}, domain.ErrPayerRequired
	}
	addr, err := mail.ParseAddress(p.Email)
	if err != nil || addr.Address != p.Email || !strings.Contains(p.Email[strings.LastIndex(p.Email, "@"):], ".") {
		return domain.Payer{}, domain.ErrInvalidEmail
	}
	return p, nil
}
