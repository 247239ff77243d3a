package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
)

type ReconcileRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCharge(ctx context.Context, reference string) (domain.Charge, error)
	GetChargeForUpdate(ctx context.Context, reference string) (domain.Charge, error)
	// ResolveCharge writes a terminal status only while the charge is still
	// pending and returns ErrChargeAlreadyTerminal otherwise.
	ResolveCharge(ctx context.Context, reference string, res domain.ChargeResolution) error
}

// Crediter applies aggregate side effects of a completed charge.
type Crediter interface {
	Credit(ctx context.Context, charge domain.Charge) error
}

// PaymentVerifier asks the gateway for the authoritative status of a reference.
type PaymentVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (domain.PaymentVerification, error)
}

// WebhookParser authenticates and decodes a raw gateway notification. It must
// return ErrInvalidSignature before decoding anything when the signature does
// not match.
type WebhookParser interface {
	ParseWebhook(body []byte, signature string) (domain.PaymentEvent, error)
}

type Reconciler struct {
	repo          ReconcileRepository
	crediter      Crediter
	verifier      PaymentVerifier
	parser        WebhookParser
	clock         clock.Clock
	logger        *slog.Logger
	verifyTimeout time.Duration
}

const defaultVerifyTimeout = 10 * time.Second

func NewReconciler(repo ReconcileRepository, crediter Crediter, verifier PaymentVerifier, parser WebhookParser, clk clock.Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:          repo,
		crediter:      crediter,
		verifier:      verifier,
		parser:        parser,
		clock:         clk,
		logger:        slog.Default(),
		verifyTimeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcilerOption func(*Reconciler)

// WithVerifyTimeout bounds the gateway verification made on the callback path.
func WithVerifyTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.verifyTimeout = d
		}
	}
}

func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Signal is one report about the outcome of a charge, from either channel.
type Signal struct {
	Reference string
	Outcome   domain.PaymentOutcome
	Amount    int64
	Channel   domain.Channel
}

type Resolution struct {
	Charge domain.Charge
	// Applied is true only for the call that performed the transition.
	Applied bool
	Flag    domain.ChargeFlag
}

// Resolve converges a pending charge to its terminal state. Signals for
// terminal charges and non-final outcomes are no-ops. The status change and
// the aggregate increment commit together or not at all.
func (r *Reconciler) Resolve(ctx context.Context, sig Signal) (Resolution, error) {
	if strings.TrimSpace(sig.Reference) == "" {
		return Resolution{}, domain.ErrInvalidReference
	}

	var res Resolution
	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		res = Resolution{}
		charge, err := r.repo.GetChargeForUpdate(txCtx, sig.Reference)
		if err != nil {
			return err
		}
		res.Charge = charge

		if charge.Status.Terminal() {
			return nil
		}
		if !sig.Outcome.Final() {
			return nil
		}

		resolution := domain.ChargeResolution{
			Status:        domain.ChargeStatusFailed,
			Channel:       sig.Channel,
			GatewayAmount: sig.Amount,
			ResolvedAt:    r.clock.Now(),
		}
		if sig.Outcome == domain.PaymentSucceeded {
			flag, err := r.credit(txCtx, charge)
			if err != nil {
				return err
			}
			if flag == domain.ChargeFlagNone && sig.Amount > 0 && sig.Amount != charge.AmountDue {
				flag = domain.ChargeFlagAmountMismatch
			}
			resolution.Status = domain.ChargeStatusCompleted
			resolution.Flag = flag
		}

		if err := r.repo.ResolveCharge(txCtx, charge.Reference, resolution); err != nil {
			return err
		}

		charge.Status = resolution.Status
		charge.Flag = resolution.Flag
		charge.ResolvedVia = resolution.Channel
		charge.GatewayAmount = resolution.GatewayAmount
		resolvedAt := resolution.ResolvedAt
		charge.ResolvedAt = &resolvedAt
		res = Resolution{Charge: charge, Applied: true, Flag: resolution.Flag}
		return nil
	})
	if errors.Is(err, domain.ErrChargeAlreadyTerminal) {
		// Lost the compare-and-swap; the increment was rolled back with it.
		charge, getErr := r.repo.GetCharge(ctx, sig.Reference)
		if getErr != nil {
			return Resolution{}, getErr
		}
		res, err = Resolution{Charge: charge}, nil
	}
	if err != nil {
		return Resolution{}, err
	}

	r.report(sig, res)
	return res, nil
}

func (r *Reconciler) credit(ctx context.Context, charge domain.Charge) (domain.ChargeFlag, error) {
	err := r.crediter.Credit(ctx, charge)
	switch {
	case err == nil:
		return domain.ChargeFlagNone, nil
	case errors.Is(err, domain.ErrCapacityExceeded):
		return domain.ChargeFlagOversold, nil
	case errors.Is(err, domain.ErrNomineeNotFound), errors.Is(err, domain.ErrTicketTypeNotFound):
		return domain.ChargeFlagSubjectMissing, nil
	default:
		return domain.ChargeFlagNone, fmt.Errorf("credit %s: %w", charge.Reference, err)
	}
}

func (r *Reconciler) report(sig Signal, res Resolution) {
	charge := res.Charge
	if !res.Applied && sig.Outcome == domain.PaymentSucceeded && charge.Status == domain.ChargeStatusFailed {
		// First transition wins, but the payer has been debited for nothing.
		r.logger.Error("payment succeeded for a failed charge",
			"alert", true,
			"reference", charge.Reference,
			"channel", sig.Channel,
			"resolved_via", charge.ResolvedVia,
			"kind", charge.Kind,
			"subject_id", charge.SubjectID,
			"amount_due", charge.AmountDue,
			"gateway_amount", sig.Amount,
		)
		return
	}
	if !res.Applied {
		r.logger.Debug("signal ignored",
			"reference", charge.Reference,
			"channel", sig.Channel,
			"outcome", sig.Outcome,
			"status", charge.Status,
		)
		return
	}
	r.logger.Info("charge resolved",
		"reference", charge.Reference,
		"channel", sig.Channel,
		"kind", charge.Kind,
		"status", charge.Status,
		"quantity", charge.Quantity,
	)
	if res.Flag != domain.ChargeFlagNone {
		r.logger.Error("charge needs manual reconciliation",
			"alert", true,
			"reference", charge.Reference,
			"flag", res.Flag,
			"kind", charge.Kind,
			"subject_id", charge.SubjectID,
			"quantity", charge.Quantity,
			"amount_due", charge.AmountDue,
			"gateway_amount", sig.Amount,
		)
	}
}

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookNotFound  WebhookOutcome = "not_found"
	WebhookFailed    WebhookOutcome = "failed"
)

type WebhookResult struct {
	Event     string
	Reference string
	Outcome   WebhookOutcome
}

// HandleWebhook processes a push notification. Only ErrInvalidSignature is
// returned; every other problem is logged and the delivery is acknowledged so
// the gateway does not keep retrying.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	event, err := r.parser.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			r.logger.Warn("webhook rejected: invalid signature")
			return WebhookResult{}, err
		}
		r.logger.Warn("webhook payload unreadable", "error", err)
		return WebhookResult{Outcome: WebhookIgnored}, nil
	}

	result := WebhookResult{Event: event.Type, Reference: event.Reference}
	if !event.Outcome.Final() || event.Reference == "" {
		r.logger.Debug("webhook event ignored", "event", event.Type, "reference", event.Reference)
		result.Outcome = WebhookIgnored
		return result, nil
	}

	res, err := r.Resolve(ctx, Signal{
		Reference: event.Reference,
		Outcome:   event.Outcome,
		Amount:    event.Amount,
		Channel:   domain.ChannelWebhook,
	})
	switch {
	case errors.Is(err, domain.ErrChargeNotFound):
		r.logger.Warn("webhook for unknown reference", "event", event.Type, "reference", event.Reference)
		result.Outcome = WebhookNotFound
	case err != nil:
		r.logger.Error("webhook processing failed",
			"alert", true,
			"event", event.Type,
			"reference", event.Reference,
			"error", err,
		)
		result.Outcome = WebhookFailed
	case res.Applied:
		result.Outcome = WebhookApplied
	default:
		result.Outcome = WebhookDuplicate
	}
	return result, nil
}

type CallbackResult struct {
	Reference string
	Status    domain.ChargeStatus
	Charge    domain.Charge
}

// VerifyCallback handles the payer's redirect back from checkout. It asks the
// gateway for the authoritative outcome and resolves the charge the same way a
// webhook would. A gateway error or timeout leaves the charge untouched and
// reports it as pending along with ErrGatewayUnavailable.
func (r *Reconciler) VerifyCallback(ctx context.Context, reference string) (CallbackResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return CallbackResult{}, domain.ErrInvalidReference
	}

	charge, err := r.repo.GetCharge(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrChargeNotFound) {
			r.logger.Warn("callback for unknown reference", "reference", reference)
		}
		return CallbackResult{Reference: reference}, err
	}
	if charge.Status.Terminal() {
		return CallbackResult{Reference: reference, Status: charge.Status, Charge: charge}, nil
	}

	pending := CallbackResult{Reference: reference, Status: domain.ChargeStatusPending, Charge: charge}

	verifyCtx, cancel := context.WithTimeout(ctx, r.verifyTimeout)
	defer cancel()
	verification, err := r.verifier.VerifyTransaction(verifyCtx, reference)
	if err != nil {
		r.logger.Warn("payment verification unavailable", "reference", reference, "error", err)
		return pending, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	if !verification.Outcome.Final() {
		return pending, nil
	}

	res, err := r.Resolve(ctx, Signal{
		Reference: reference,
		Outcome:   verification.Outcome,
		Amount:    verification.Amount,
		Channel:   domain.ChannelCallback,
	})
	if err != nil {
		r.logger.Error("callback resolution failed", "alert", true, "reference", reference, "error", err)
		return pending, err
	}
	return CallbackResult{Reference: reference, Status: res.Charge.Status, Charge: res.Charge}, nil
}
