// Package audit records state changes of wallets, payout requests and
// their supporting records.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Actions emitted by the core.
const (
	ActionWalletCredit       = "wallet.credit"
	ActionWalletDebit        = "wallet.debit"
	ActionPayoutRequested    = "payout.requested"
	ActionPayoutReview       = "payout.review"
	ActionPayoutApproved     = "payout.approved"
	ActionPayoutCancelled    = "payout.cancelled"
	ActionPayoutProcessing   = "payout.processing"
	ActionPayoutExecuted     = "payout.executed"
	ActionPayoutFailed       = "payout.failed"
	ActionPayoutWebhook      = "payout.webhook"
	ActionPayoutSettled      = "payout.settled"
	ActionKycSubmitted       = "kyc.submitted"
	ActionKycReviewed        = "kyc.reviewed"
	ActionAccountCreated     = "payout_account.created"
	ActionAccountVerified    = "payout_account.verified"
	ActionFeatureFlagChanged = "feature_flag.changed"
)

// Entry is one audit record.
type Entry struct {
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	At         time.Time         `json:"at"`
}

// Sink stores audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// LogSink writes entries to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.logger == nil {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("action", entry.Action),
		slog.String("actor_id", entry.ActorID),
		slog.String("target_type", entry.TargetType),
		slog.String("target_id", entry.TargetID),
	}
	for k, v := range entry.Metadata {
		attrs = append(attrs, slog.String("meta."+k, v))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}

// Multi fans an entry out to every sink and joins their errors.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder stamps entries and forwards them to a sink. It runs after commit;
// sink failures are logged and never fail the operation.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder wraps sink. A nil sink records nothing.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record stamps and forwards entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = r.now()
	}
	if err := r.sink.Record(ctx, entry); err != nil && r.logger != nil {
		r.logger.Warn("audit sink failed", slog.String("action", entry.Action), slog.String("target_id", entry.TargetID), slog.Any("error", err))
	}
}
