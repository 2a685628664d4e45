package settlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/flags"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/metrics"
	"github.com/propad/propad_wallet/internal/notification"
	"github.com/propad/propad_wallet/internal/wallet"
)

// Execution statuses recorded on PayoutExecution rows.
const (
	ExecutionCompleted = "COMPLETED"
	ExecutionPending   = "PENDING"
	ExecutionFailed    = "FAILED"
)

// FlagChecker reports whether a feature is switched on.
type FlagChecker interface {
	Enabled(ctx context.Context, key string) (bool, error)
}

// Executor sends approved payouts to providers.
type Executor struct {
	store      ledger.Store
	dispatcher *Dispatcher
	flags      FlagChecker
	audit      *audit.Recorder
	notifier   notification.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutor wires an executor. A nil dispatcher uses DefaultDispatcher; a
// nil flag checker treats payouts as enabled.
func NewExecutor(store ledger.Store, dispatcher *Dispatcher, fc FlagChecker, recorder *audit.Recorder, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Executor {
	if dispatcher == nil {
		dispatcher = DefaultDispatcher()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{
		store:      store,
		dispatcher: dispatcher,
		flags:      fc,
		audit:      recorder,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Outcome is the state after an execution attempt.
type Outcome struct {
	Request   ledger.PayoutRequest
	Execution ledger.PayoutExecution
	Settled   bool
}

type prepared struct {
	request     ledger.PayoutRequest
	provider    Provider
	instruction Instruction
	ownerID     string
}

// Execute sends a REQUESTED or APPROVED payout to its provider. The request
// is marked PROCESSING and committed before the provider is called, so no
// wallet lock is held during the call. A provider error marks the request
// FAILED; it is not retried.
func (e *Executor) Execute(ctx context.Context, act actor.Actor, id string) (Outcome, error) {
	if !act.IsReviewer() {
		return Outcome{}, apperr.Forbidden("only reviewers may execute payouts")
	}
	if e.flags != nil {
		enabled, err := e.flags.Enabled(ctx, flags.EnablePayouts)
		if err != nil {
			return Outcome{}, err
		}
		if !enabled {
			return Outcome{}, apperr.ErrPayoutsDisabled
		}
	}

	p, err := e.prepare(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	e.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionPayoutProcessing,
		ActorID:    act.UserID,
		TargetType: "payout_request",
		TargetID:   p.request.ID,
		Metadata:   map[string]string{"provider": p.provider.Name()},
	})

	started := time.Now()
	result, callErr := p.provider.Process(ctx, p.instruction)
	took := time.Since(started)

	out, err := e.record(ctx, p, result, callErr)
	if err != nil {
		e.logger.ErrorContext(ctx, "payout result not recorded",
			slog.String("payout_id", p.request.ID),
			slog.String("provider", p.provider.Name()),
			slog.Any("error", err),
		)
		return Outcome{}, err
	}
	e.metrics.PayoutExecuted(p.provider.Name(), out.Execution.Status, took)
	e.report(ctx, act, p, out)

	if callErr != nil {
		return out, apperr.External("payout provider "+p.provider.Name()+" failed", callErr)
	}
	return out, nil
}

func (e *Executor) prepare(ctx context.Context, id string) (prepared, error) {
	now := e.now()
	var p prepared
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		current, err := tx.GetPayoutRequest(ctx, id)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, current.WalletID)
		if err != nil {
			return err
		}
		if _, err := wallet.ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		req, err := tx.LockPayoutRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != ledger.PayoutRequested && req.Status != ledger.PayoutApproved {
			return apperr.Conflict("payout cannot be executed from " + string(req.Status))
		}
		provider, err := e.dispatcher.Resolve(req.Method)
		if err != nil {
			return err
		}
		account, err := tx.GetPayoutAccount(ctx, req.PayoutAccountID)
		if err != nil {
			return err
		}

		if req.TxRef == "" {
			req.TxRef = uuid.NewString()
		}
		req.Status = ledger.PayoutProcessing
		req.UpdatedAt = now
		if err := tx.UpdatePayoutRequest(ctx, req); err != nil {
			return err
		}

		p = prepared{
			request:  req,
			provider: provider,
			ownerID:  w.OwnerID,
			instruction: Instruction{
				PayoutID:    req.ID,
				Reference:   req.TxRef,
				AmountCents: req.AmountCents,
				Currency:    w.Currency,
				Method:      req.Method,
				Recipient:   account.Details,
			},
		}
		return nil
	})
	return p, err
}

func (e *Executor) record(ctx context.Context, p prepared, result Result, callErr error) (Outcome, error) {
	now := e.now()
	exec := ledger.PayoutExecution{
		ID:              uuid.NewString(),
		PayoutRequestID: p.request.ID,
		Provider:        p.provider.Name(),
		AmountCents:     p.instruction.AmountCents,
		Currency:        p.instruction.Currency,
		CreatedAt:       now,
	}
	var next ledger.PayoutStatus
	switch {
	case callErr != nil:
		exec.Status = ExecutionFailed
		exec.Response, _ = json.Marshal(map[string]string{"error": callErr.Error()})
		next = ledger.PayoutFailed
	case result.Status == ResultCompleted:
		exec.Status = ExecutionCompleted
		exec.ProviderRef = result.ProviderRef
		exec.Response, _ = json.Marshal(result.Raw)
		next = ledger.PayoutPaid
	default:
		exec.Status = ExecutionPending
		exec.ProviderRef = result.ProviderRef
		exec.Response, _ = json.Marshal(result.Raw)
		next = ledger.PayoutSent
	}

	var out Outcome
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.LockWallet(ctx, p.request.WalletID); err != nil {
			return err
		}
		req, err := tx.LockPayoutRequest(ctx, p.request.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertExecution(ctx, exec); err != nil {
			return err
		}
		out.Execution = exec

		// a webhook may have settled the request while the provider was called
		if req.Status != ledger.PayoutProcessing {
			out.Request = req
			return nil
		}

		req.Status = next
		req.UpdatedAt = now
		if callErr != nil {
			req.FailureReason = callErr.Error()
		} else if result.ProviderRef != "" {
			req.TxRef = result.ProviderRef
		}
		if err := tx.UpdatePayoutRequest(ctx, req); err != nil {
			return err
		}
		if next == ledger.PayoutPaid {
			if out.Settled, err = wallet.SettlePayout(ctx, tx, req, now); err != nil {
				return err
			}
		}
		out.Request = req
		return nil
	})
	return out, err
}

func (e *Executor) report(ctx context.Context, act actor.Actor, p prepared, out Outcome) {
	req := out.Request
	e.logger.InfoContext(ctx, "payout.executed",
		slog.String("payout_id", req.ID),
		slog.String("provider", out.Execution.Provider),
		slog.String("execution_status", out.Execution.Status),
		slog.String("status", string(req.Status)),
	)

	action := audit.ActionPayoutExecuted
	meta := map[string]string{
		"provider":     out.Execution.Provider,
		"execution_id": out.Execution.ID,
		"status":       string(req.Status),
	}
	if out.Execution.Status == ExecutionFailed {
		action = audit.ActionPayoutFailed
		meta["reason"] = req.FailureReason
	}
	e.audit.Record(ctx, audit.Entry{Action: action, ActorID: act.UserID, TargetType: "payout_request", TargetID: req.ID, Metadata: meta})

	if out.Settled {
		e.metrics.Settled(req.AmountCents)
		e.audit.Record(ctx, audit.Entry{
			Action:     audit.ActionPayoutSettled,
			ActorID:    act.UserID,
			TargetType: "wallet",
			TargetID:   req.WalletID,
			Metadata:   map[string]string{"payout_id": req.ID, "amount_cents": strconv.FormatInt(req.AmountCents, 10)},
		})
	}

	if e.notifier == nil {
		return
	}
	if msg, ok := notification.ForPayout(req.Status, p.ownerID, req.AmountCents, p.instruction.Currency); ok {
		if err := e.notifier.Send(ctx, msg); err != nil {
			e.logger.WarnContext(ctx, "payout notification failed", slog.String("payout_id", req.ID), slog.Any("error", err))
		}
	}
}
