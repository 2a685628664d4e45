// Package payout admits payout requests against a wallet's available balance
// and drives them through review, approval and provider reconciliation.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/metrics"
	"github.com/propad/propad_wallet/internal/notification"
	"github.com/propad/propad_wallet/internal/payout/rules"
	"github.com/propad/propad_wallet/internal/wallet"
)

// Engine owns the payout request state machine up to execution.
type Engine struct {
	store    ledger.Store
	settings config.PayoutSettingsProvider
	chain    rules.Chain
	audit    *audit.Recorder
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires an engine. A nil chain uses rules.Default.
func NewEngine(store ledger.Store, settings config.PayoutSettingsProvider, chain rules.Chain, recorder *audit.Recorder, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if settings == nil {
		settings = config.StaticPayoutSettings(config.DefaultPayoutSettings())
	}
	if chain == nil {
		chain = rules.Default(settings)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		store:    store,
		settings: settings,
		chain:    chain,
		audit:    recorder,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RequestInput is a payout request from a wallet owner.
type RequestInput struct {
	WalletID        string
	AmountCents     int64
	Method          ledger.Method
	PayoutAccountID string
	ScheduledFor    *time.Time
}

// ApproveInput carries the optional provider reference and schedule.
type ApproveInput struct {
	TxRef        string
	ScheduledFor *time.Time
}

// Request admits a payout in REQUESTED state. Funds are reserved by the
// request's status; nothing is debited until the payout is paid.
func (e *Engine) Request(ctx context.Context, act actor.Actor, in RequestInput) (ledger.PayoutRequest, error) {
	req, err := e.request(ctx, act, in)
	outcome := "accepted"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	e.metrics.PayoutRequested(outcome)
	if err != nil {
		return ledger.PayoutRequest{}, err
	}

	e.logger.InfoContext(ctx, "payout.requested",
		slog.String("payout_id", req.ID),
		slog.String("wallet_id", req.WalletID),
		slog.Int64("amount_cents", req.AmountCents),
		slog.String("method", string(req.Method)),
	)
	e.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionPayoutRequested,
		ActorID:    act.UserID,
		TargetType: "payout_request",
		TargetID:   req.ID,
		Metadata: map[string]string{
			"amount_cents": strconv.FormatInt(req.AmountCents, 10),
			"method":       string(req.Method),
		},
	})
	return req, nil
}

func (e *Engine) request(ctx context.Context, act actor.Actor, in RequestInput) (ledger.PayoutRequest, error) {
	if in.WalletID == "" || in.PayoutAccountID == "" {
		return ledger.PayoutRequest{}, apperr.Validation("wallet id and payout account id are required")
	}
	if in.AmountCents <= 0 {
		return ledger.PayoutRequest{}, apperr.Validation("amount must be positive")
	}
	if !ledger.ValidMethod(in.Method) {
		return ledger.PayoutRequest{}, apperr.Validation("unknown payout method")
	}
	owner, err := act.Owner()
	if err != nil {
		return ledger.PayoutRequest{}, err
	}

	settings := e.settings.PayoutSettings()
	now := e.now()

	var req ledger.PayoutRequest
	err = e.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, in.WalletID)
		if err != nil {
			return err
		}
		if w.Owner() != owner {
			return apperr.Forbidden("wallet does not belong to actor")
		}
		if _, err := wallet.ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		if w, err = tx.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		if !strings.EqualFold(w.Currency, settings.Currency) {
			return apperr.ErrUnsupportedCurrency
		}

		candidate := rules.Candidate{
			Owner:       owner,
			Wallet:      w,
			AmountCents: in.AmountCents,
			Method:      in.Method,
		}
		if err := e.chain.Only(rules.NameMinimumAmount).Validate(ctx, tx, candidate); err != nil {
			return err
		}

		reserved, err := tx.SumReserved(ctx, w.ID)
		if err != nil {
			return err
		}
		if w.BalanceCents-reserved < in.AmountCents {
			return apperr.ErrInsufficientFunds
		}

		account, err := tx.GetPayoutAccount(ctx, in.PayoutAccountID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.ErrAccountNotAvailable
			}
			return err
		}
		if account.OwnerType != w.OwnerType || account.OwnerID != w.OwnerID {
			return apperr.ErrAccountNotAvailable
		}
		if account.VerifiedAt == nil {
			return apperr.ErrAccountUnverified
		}
		if account.Type != in.Method {
			return apperr.ErrMethodMismatch
		}
		candidate.Account = account

		if err := e.chain.Only(rules.NameKYC).Validate(ctx, tx, candidate); err != nil {
			return err
		}

		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		today, err := tx.CountPayoutsSince(ctx, w.ID, dayStart)
		if err != nil {
			return err
		}
		if today >= settings.MaxPayoutsPerDay {
			return apperr.ErrDailyLimitReached
		}

		if err := e.chain.Except(rules.NameMinimumAmount, rules.NameKYC).Validate(ctx, tx, candidate); err != nil {
			return err
		}

		req = ledger.PayoutRequest{
			ID:              uuid.NewString(),
			WalletID:        w.ID,
			AmountCents:     in.AmountCents,
			Method:          in.Method,
			PayoutAccountID: account.ID,
			Status:          ledger.PayoutRequested,
			ScheduledFor:    in.ScheduledFor,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.InsertPayoutRequest(ctx, req)
	})
	return req, err
}

// Approve moves a REQUESTED or REVIEW payout to APPROVED and assigns its
// provider reference: the given one, else the existing one, else a new UUID.
func (e *Engine) Approve(ctx context.Context, act actor.Actor, id string, in ApproveInput) (ledger.PayoutRequest, error) {
	if !act.IsReviewer() {
		return ledger.PayoutRequest{}, apperr.Forbidden("only reviewers may approve payouts")
	}
	req, err := e.transition(ctx, id, func(r *ledger.PayoutRequest) error {
		if r.Status != ledger.PayoutRequested && r.Status != ledger.PayoutReview {
			return apperr.Conflict("payout can only be approved from REQUESTED or REVIEW")
		}
		r.Status = ledger.PayoutApproved
		switch {
		case in.TxRef != "":
			r.TxRef = in.TxRef
		case r.TxRef == "":
			r.TxRef = uuid.NewString()
		}
		if in.ScheduledFor != nil {
			r.ScheduledFor = in.ScheduledFor
		}
		return nil
	})
	if err != nil {
		return ledger.PayoutRequest{}, err
	}
	e.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionPayoutApproved,
		ActorID:    act.UserID,
		TargetType: "payout_request",
		TargetID:   req.ID,
		Metadata:   map[string]string{"tx_ref": req.TxRef},
	})
	return req, nil
}

// MarkReview parks a REQUESTED payout for manual review.
func (e *Engine) MarkReview(ctx context.Context, act actor.Actor, id string) (ledger.PayoutRequest, error) {
	if !act.IsReviewer() {
		return ledger.PayoutRequest{}, apperr.Forbidden("only reviewers may review payouts")
	}
	req, err := e.transition(ctx, id, func(r *ledger.PayoutRequest) error {
		if r.Status != ledger.PayoutRequested {
			return apperr.Conflict("payout can only be reviewed from REQUESTED")
		}
		r.Status = ledger.PayoutReview
		return nil
	})
	if err != nil {
		return ledger.PayoutRequest{}, err
	}
	e.audit.Record(ctx, audit.Entry{Action: audit.ActionPayoutReview, ActorID: act.UserID, TargetType: "payout_request", TargetID: req.ID})
	return req, nil
}

// Cancel withdraws a payout that has not reached a provider. The owner or a
// reviewer may cancel; the reservation ends with the status change.
func (e *Engine) Cancel(ctx context.Context, act actor.Actor, id, reason string) (ledger.PayoutRequest, error) {
	req, err := e.transitionAuthorized(ctx, act, id, func(r *ledger.PayoutRequest) error {
		switch r.Status {
		case ledger.PayoutRequested, ledger.PayoutReview, ledger.PayoutApproved:
		default:
			return apperr.Conflict("payout cannot be cancelled from " + string(r.Status))
		}
		r.Status = ledger.PayoutCancelled
		r.FailureReason = reason
		return nil
	})
	if err != nil {
		return ledger.PayoutRequest{}, err
	}
	e.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionPayoutCancelled,
		ActorID:    act.UserID,
		TargetType: "payout_request",
		TargetID:   req.ID,
		Metadata:   map[string]string{"reason": reason},
	})
	return req, nil
}

// Get returns a payout request the actor may see, with its executions.
func (e *Engine) Get(ctx context.Context, act actor.Actor, id string) (ledger.PayoutRequest, []ledger.PayoutExecution, error) {
	var (
		req   ledger.PayoutRequest
		execs []ledger.PayoutExecution
	)
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		if req, err = tx.GetPayoutRequest(ctx, id); err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, req.WalletID)
		if err != nil {
			return err
		}
		if err := act.Authorize(w.Owner()); err != nil {
			return err
		}
		execs, err = tx.ListExecutions(ctx, req.ID)
		return err
	})
	return req, execs, err
}

// List returns payout requests, newest first. Non-reviewers must name one of
// their own wallets.
func (e *Engine) List(ctx context.Context, act actor.Actor, filter ledger.PayoutFilter) ([]ledger.PayoutRequest, error) {
	if filter.Status != "" && !ledger.ValidPayoutStatus(filter.Status) {
		return nil, apperr.Validation("unknown payout status")
	}
	if !act.IsReviewer() && filter.WalletID == "" {
		return nil, apperr.Validation("wallet id is required")
	}
	var out []ledger.PayoutRequest
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		if filter.WalletID != "" {
			w, err := tx.LockWallet(ctx, filter.WalletID)
			if err != nil {
				return err
			}
			if err := act.Authorize(w.Owner()); err != nil {
				return err
			}
		}
		var err error
		out, err = tx.ListPayoutRequests(ctx, filter)
		return err
	})
	return out, err
}

func (e *Engine) transition(ctx context.Context, id string, apply func(r *ledger.PayoutRequest) error) (ledger.PayoutRequest, error) {
	return e.transitionAuthorized(ctx, actor.System, id, apply)
}

// transitionAuthorized locks the wallet, then the request, checks access and
// persists the change made by apply.
func (e *Engine) transitionAuthorized(ctx context.Context, act actor.Actor, id string, apply func(r *ledger.PayoutRequest) error) (ledger.PayoutRequest, error) {
	now := e.now()
	var req ledger.PayoutRequest
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		current, err := tx.GetPayoutRequest(ctx, id)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, current.WalletID)
		if err != nil {
			return err
		}
		if err := act.Authorize(w.Owner()); err != nil {
			return err
		}
		if _, err := wallet.ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		if req, err = tx.LockPayoutRequest(ctx, id); err != nil {
			return err
		}
		if err := apply(&req); err != nil {
			return err
		}
		req.UpdatedAt = now
		return tx.UpdatePayoutRequest(ctx, req)
	})
	return req, err
}
