// Package kyc records identity verification submissions and their review.
package kyc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/notification"
)

// Service handles KYC submissions.
type Service struct {
	store    ledger.Store
	audit    *audit.Recorder
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a KYC service. notifier may be nil.
func NewService(store ledger.Store, recorder *audit.Recorder, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, audit: recorder, notifier: notifier, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SubmitInput is a KYC submission.
type SubmitInput struct {
	IDType   string
	IDNumber string
	DocURLs  []string
	Notes    string
}

// Submit records a PENDING submission for the actor's owner. Agency actors
// submit on behalf of the agency.
func (s *Service) Submit(ctx context.Context, act actor.Actor, in SubmitInput) (ledger.KycRecord, error) {
	owner, err := act.Owner()
	if err != nil {
		return ledger.KycRecord{}, err
	}
	if strings.TrimSpace(in.IDType) == "" || strings.TrimSpace(in.IDNumber) == "" {
		return ledger.KycRecord{}, apperr.Validation("id type and id number are required")
	}

	now := s.now()
	record := ledger.KycRecord{
		ID:        uuid.NewString(),
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		IDType:    strings.TrimSpace(in.IDType),
		IDNumber:  strings.TrimSpace(in.IDNumber),
		DocURLs:   in.DocURLs,
		Notes:     in.Notes,
		Status:    ledger.KycPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertKyc(ctx, record)
	}); err != nil {
		return ledger.KycRecord{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionKycSubmitted,
		ActorID:    act.UserID,
		TargetType: "kyc_record",
		TargetID:   record.ID,
		Metadata:   map[string]string{"owner_type": string(owner.Type), "owner_id": owner.ID},
	})
	return record, nil
}

// UpdateStatus reviews a submission. Reviewers only.
func (s *Service) UpdateStatus(ctx context.Context, act actor.Actor, id string, status ledger.KycStatus, notes string) (ledger.KycRecord, error) {
	if !act.IsReviewer() {
		return ledger.KycRecord{}, apperr.Forbidden("only reviewers may update KYC status")
	}
	switch status {
	case ledger.KycPending, ledger.KycVerified, ledger.KycRejected:
	default:
		return ledger.KycRecord{}, apperr.Validation("unknown KYC status")
	}

	var record ledger.KycRecord
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		record, err = tx.UpdateKycStatus(ctx, id, status, notes, s.now())
		return err
	})
	if err != nil {
		return ledger.KycRecord{}, err
	}

	s.logger.InfoContext(ctx, "kyc.reviewed", slog.String("kyc_id", id), slog.String("status", string(status)))
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionKycReviewed,
		ActorID:    act.UserID,
		TargetType: "kyc_record",
		TargetID:   id,
		Metadata:   map[string]string{"status": string(status)},
	})
	if s.notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindKycReviewed,
			Destination: record.OwnerID,
			Title:       "Verification update",
			Body:        "Your identity verification is now " + strings.ToLower(string(status)) + ".",
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "kyc notification failed", slog.String("kyc_id", id), slog.Any("error", err))
		}
	}
	return record, nil
}

// Latest returns the actor's most recent submission.
func (s *Service) Latest(ctx context.Context, act actor.Actor) (ledger.KycRecord, error) {
	owner, err := act.Owner()
	if err != nil {
		return ledger.KycRecord{}, err
	}
	var (
		record ledger.KycRecord
		found  bool
	)
	err = s.store.InTx(ctx, func(tx ledger.Tx) error {
		record, found, err = tx.LatestKyc(ctx, owner)
		return err
	})
	if err != nil {
		return ledger.KycRecord{}, err
	}
	if !found {
		return ledger.KycRecord{}, apperr.NotFound("no KYC submission")
	}
	return record, nil
}
