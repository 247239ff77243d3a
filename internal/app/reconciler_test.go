package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/domain"
	"github.com/achingachris/mya-server/internal/gateway/paystack"
)

const webhookSecret = "sk_test_webhook"

type fakeVerifier struct {
	mu     sync.Mutex
	result domain.PaymentVerification
	err    error
	calls  int
	// hang blocks until the caller's context ends.
	hang bool
}

func (f *fakeVerifier) VerifyTransaction(ctx context.Context, reference string) (domain.PaymentVerification, error) {
	f.mu.Lock()
	f.calls++
	hang := f.hang
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return domain.PaymentVerification{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PaymentVerification{}, f.err
	}
	v := f.result
	v.Reference = reference
	return v, nil
}

type reconcilerFixture struct {
	ledger   *fakeLedger
	verifier *fakeVerifier
	rec      *Reconciler
}

var fixtureNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newReconcilerFixture() reconcilerFixture {
	ledger := newFakeLedger()
	ledger.nominees["nom-1"] = domain.Nominee{ID: "nom-1", Name: "Nominee", VoteCount: 5}
	ledger.ticketTypes["tt-1"] = domain.TicketType{ID: "tt-1", Name: "VIP", UnitPrice: 100000, Capacity: 2}
	clk := clock.NewFixed(fixtureNow)
	verifier := &fakeVerifier{}
	rec := NewReconciler(ledger, NewProjector(ledger, clk), verifier, paystack.NewClient(webhookSecret), clk)
	return reconcilerFixture{ledger: ledger, verifier: verifier, rec: rec}
}

func (f reconcilerFixture) pending(reference string, kind domain.ChargeKind, subject string, qty int, amount int64) {
	f.ledger.charges[reference] = domain.Charge{
		Reference: reference,
		Kind:      kind,
		SubjectID: subject,
		Quantity:  qty,
		AmountDue: amount,
		Currency:  "KES",
		Payer:     domain.Payer{Name: "A", Email: "a@example.com", Phone: "07"},
		Status:    domain.ChargeStatusPending,
		CreatedAt: fixtureNow,
	}
}

func signed(body string) ([]byte, string) {
	b := []byte(body)
	return b, paystack.Sign(b, webhookSecret)
}

func TestReconciler_VoteEndToEnd(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

	body, sig := signed(`{"event":"charge.success","data":{"reference":"vote_1","amount":5000,"status":"success"}}`)

	res, err := f.rec.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, res.Outcome)
	assert.EqualValues(t, 15, f.ledger.nominee("nom-1").VoteCount)

	charge := f.ledger.charge("vote_1")
	assert.Equal(t, domain.ChargeStatusCompleted, charge.Status)
	assert.Equal(t, domain.ChannelWebhook, charge.ResolvedVia)
	assert.Equal(t, domain.ChargeFlagNone, charge.Flag)
	require.NotNil(t, charge.ResolvedAt)

	res, err = f.rec.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, res.Outcome)
	assert.EqualValues(t, 15, f.ledger.nominee("nom-1").VoteCount)
}

func TestReconciler_IdempotentAcrossChannels(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("vote_1", domain.ChargeKindVote, "nom-1", 20, 10000)
	f.verifier.result = domain.PaymentVerification{Outcome: domain.PaymentSucceeded, Amount: 10000}

	cb, err := f.rec.VerifyCallback(context.Background(), "vote_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusCompleted, cb.Status)

	body, sig := signed(`{"event":"charge.success","data":{"reference":"vote_1","amount":10000}}`)
	res, err := f.rec.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, res.Outcome)

	assert.EqualValues(t, 25, f.ledger.nominee("nom-1").VoteCount)
	assert.Equal(t, domain.ChannelCallback, f.ledger.charge("vote_1").ResolvedVia)
}

func TestReconciler_OutOfOrderSignals(t *testing.T) {
	t.Parallel()

	t.Run("failed then success", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

		first, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentFailed, Channel: domain.ChannelWebhook})
		require.NoError(t, err)
		assert.True(t, first.Applied)

		second, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentSucceeded, Amount: 5000, Channel: domain.ChannelCallback})
		require.NoError(t, err)
		assert.False(t, second.Applied)
		assert.Equal(t, domain.ChargeStatusFailed, f.ledger.charge("vote_1").Status)
		assert.EqualValues(t, 5, f.ledger.nominee("nom-1").VoteCount)
	})

	t.Run("success then failed", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

		_, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentSucceeded, Amount: 5000, Channel: domain.ChannelWebhook})
		require.NoError(t, err)
		second, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentAbandoned, Channel: domain.ChannelCallback})
		require.NoError(t, err)

		assert.False(t, second.Applied)
		assert.Equal(t, domain.ChargeStatusCompleted, f.ledger.charge("vote_1").Status)
		assert.EqualValues(t, 15, f.ledger.nominee("nom-1").VoteCount)
	})

	t.Run("non-final outcome leaves charge pending", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

		res, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentProcessing, Channel: domain.ChannelCallback})
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, domain.ChargeStatusPending, f.ledger.charge("vote_1").Status)
	})
}

func TestReconciler_ConcurrentResolveAppliesOnce(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	// capacity 2 fits exactly one purchase of 2
	f.pending("ticket_1", domain.ChargeKindTicket, "tt-1", 2, 200000)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		channel := domain.ChannelWebhook
		if i%2 == 1 {
			channel = domain.ChannelCallback
		}
		go func(ch domain.Channel) {
			defer wg.Done()
			<-start
			res, err := f.rec.Resolve(context.Background(), Signal{
				Reference: "ticket_1", Outcome: domain.PaymentSucceeded, Amount: 200000, Channel: ch,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Applied {
				applied++
			}
		}(channel)
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, f.ledger.ticketType("tt-1").SoldCount)
	assert.Equal(t, 2, f.ledger.ticketCount())
	assert.Equal(t, domain.ChargeStatusCompleted, f.ledger.charge("ticket_1").Status)
}

func TestReconciler_CapacityExceededFlagsOversold(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("ticket_a", domain.ChargeKindTicket, "tt-1", 2, 200000)
	f.pending("ticket_b", domain.ChargeKindTicket, "tt-1", 1, 100000)

	a, err := f.rec.Resolve(context.Background(), Signal{Reference: "ticket_a", Outcome: domain.PaymentSucceeded, Amount: 200000, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeFlagNone, a.Flag)

	b, err := f.rec.Resolve(context.Background(), Signal{Reference: "ticket_b", Outcome: domain.PaymentSucceeded, Amount: 100000, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.True(t, b.Applied)
	assert.Equal(t, domain.ChargeFlagOversold, b.Flag)

	charge := f.ledger.charge("ticket_b")
	assert.Equal(t, domain.ChargeStatusCompleted, charge.Status)
	assert.Equal(t, domain.ChargeFlagOversold, charge.Flag)
	assert.Equal(t, 2, f.ledger.ticketType("tt-1").SoldCount)
	assert.Equal(t, 2, f.ledger.ticketCount())
}

func TestReconciler_FlagsSubjectMissingAndAmountMismatch(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("vote_gone", domain.ChargeKindVote, "deleted", 10, 5000)
	f.pending("vote_short", domain.ChargeKindVote, "nom-1", 10, 5000)

	gone, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_gone", Outcome: domain.PaymentSucceeded, Amount: 5000, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeFlagSubjectMissing, gone.Flag)

	short, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_short", Outcome: domain.PaymentSucceeded, Amount: 100, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeFlagAmountMismatch, short.Flag)
	assert.EqualValues(t, 100, f.ledger.charge("vote_short").GatewayAmount)
	assert.EqualValues(t, 15, f.ledger.nominee("nom-1").VoteCount)
}

func TestReconciler_StoreErrorRollsBack(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)
	f.ledger.creditErr = errors.New("disk full")

	body, sig := signed(`{"event":"charge.success","data":{"reference":"vote_1","amount":5000}}`)
	res, err := f.rec.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookFailed, res.Outcome)
	assert.Equal(t, domain.ChargeStatusPending, f.ledger.charge("vote_1").Status)

	f.ledger.mu.Lock()
	f.ledger.creditErr = nil
	f.ledger.mu.Unlock()

	res, err = f.rec.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, res.Outcome)
	assert.EqualValues(t, 15, f.ledger.nominee("nom-1").VoteCount)
}

func TestReconciler_SignatureRejection(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()
	f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

	bodies := []string{
		`{"event":"charge.success","data":{"reference":"vote_1","amount":5000}}`,
		`{"event":"charge.failed","data":{"reference":"vote_1"}}`,
		`garbage`,
	}
	for _, body := range bodies {
		sig := paystack.Sign([]byte(body), "attacker-key")
		_, err := f.rec.HandleWebhook(context.Background(), []byte(body), sig)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	}

	assert.Equal(t, domain.ChargeStatusPending, f.ledger.charge("vote_1").Status)
	assert.EqualValues(t, 5, f.ledger.nominee("nom-1").VoteCount)
}

func TestReconciler_WebhookAcknowledgesWithoutMutation(t *testing.T) {
	t.Parallel()
	f := newReconcilerFixture()

	cases := []struct {
		body string
		want WebhookOutcome
	}{
		{`{"event":"charge.success","data":{"reference":"never_issued","amount":5000}}`, WebhookNotFound},
		{`{"event":"transfer.success","data":{"reference":"trf_1"}}`, WebhookIgnored},
		{`not json`, WebhookIgnored},
	}
	for _, tc := range cases {
		body, sig := signed(tc.body)
		res, err := f.rec.HandleWebhook(context.Background(), body, sig)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Outcome)
	}
	assert.Empty(t, f.ledger.charges)
	assert.EqualValues(t, 5, f.ledger.nominee("nom-1").VoteCount)
}

func TestReconciler_VerifyCallback(t *testing.T) {
	t.Parallel()

	t.Run("unknown reference", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		_, err := f.rec.VerifyCallback(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrChargeNotFound)
		assert.Zero(t, f.verifier.calls)
	})

	t.Run("empty reference", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()

		_, err := f.rec.VerifyCallback(context.Background(), "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidReference)
	})

	t.Run("terminal charge skips the gateway", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)
		_, err := f.rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentFailed, Channel: domain.ChannelWebhook})
		require.NoError(t, err)

		res, err := f.rec.VerifyCallback(context.Background(), "vote_1")
		require.NoError(t, err)
		assert.Equal(t, domain.ChargeStatusFailed, res.Status)
		assert.Zero(t, f.verifier.calls)
	})

	t.Run("gateway error reports pending without mutation", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)
		f.verifier.err = context.DeadlineExceeded

		res, err := f.rec.VerifyCallback(context.Background(), "vote_1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		assert.Equal(t, domain.ChargeStatusPending, res.Status)
		assert.Equal(t, domain.ChargeStatusPending, f.ledger.charge("vote_1").Status)
	})

	t.Run("hanging gateway is cut off by the verify timeout", func(t *testing.T) {
		t.Parallel()
		ledger := newFakeLedger()
		ledger.nominees["nom-1"] = domain.Nominee{ID: "nom-1", Name: "Nominee"}
		clk := clock.NewFixed(fixtureNow)
		verifier := &fakeVerifier{hang: true}
		rec := NewReconciler(ledger, NewProjector(ledger, clk), verifier, paystack.NewClient(webhookSecret), clk,
			WithVerifyTimeout(50*time.Millisecond),
		)
		f := reconcilerFixture{ledger: ledger, verifier: verifier, rec: rec}
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

		start := time.Now()
		res, err := rec.VerifyCallback(context.Background(), "vote_1")
		elapsed := time.Since(start)

		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, elapsed, 2*time.Second)
		assert.Equal(t, domain.ChargeStatusPending, res.Status)
		assert.Equal(t, domain.ChargeStatusPending, ledger.charge("vote_1").Status)
		assert.EqualValues(t, 0, ledger.nominee("nom-1").VoteCount)
	})

	t.Run("still processing", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)
		f.verifier.result = domain.PaymentVerification{Outcome: domain.PaymentProcessing}

		res, err := f.rec.VerifyCallback(context.Background(), "vote_1")
		require.NoError(t, err)
		assert.Equal(t, domain.ChargeStatusPending, res.Status)
	})

	t.Run("abandoned resolves failed", func(t *testing.T) {
		t.Parallel()
		f := newReconcilerFixture()
		f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)
		f.verifier.result = domain.PaymentVerification{Outcome: domain.PaymentAbandoned}

		res, err := f.rec.VerifyCallback(context.Background(), "vote_1")
		require.NoError(t, err)
		assert.Equal(t, domain.ChargeStatusFailed, res.Status)
		assert.Equal(t, domain.ChannelCallback, f.ledger.charge("vote_1").ResolvedVia)
	})
}

func TestReconciler_LatePaymentOnFailedChargeAlerts(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	ledger := newFakeLedger()
	ledger.nominees["nom-1"] = domain.Nominee{ID: "nom-1", Name: "Nominee"}
	clk := clock.NewFixed(fixtureNow)
	rec := NewReconciler(ledger, NewProjector(ledger, clk), &fakeVerifier{}, paystack.NewClient(webhookSecret), clk,
		WithReconcilerLogger(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	f := reconcilerFixture{ledger: ledger, rec: rec}
	f.pending("vote_1", domain.ChargeKindVote, "nom-1", 10, 5000)

	_, err := rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentAbandoned, Channel: domain.ChannelCallback})
	require.NoError(t, err)
	logs.Reset()

	res, err := rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentSucceeded, Amount: 5000, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, domain.ChargeStatusFailed, ledger.charge("vote_1").Status)
	assert.EqualValues(t, 0, ledger.nominee("nom-1").VoteCount)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record), logs.String())
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, true, record["alert"])
	assert.Equal(t, "vote_1", record["reference"])

	// A duplicate failure stays quiet.
	logs.Reset()
	_, err = rec.Resolve(context.Background(), Signal{Reference: "vote_1", Outcome: domain.PaymentFailed, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), `"alert":true`)
}
