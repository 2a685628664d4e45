package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/money"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type movementRequest struct {
	OwnerType   string     `json:"owner_type"`
	OwnerID     string     `json:"owner_id"`
	Currency    string     `json:"currency"`
	AmountCents int64      `json:"amount_cents"`
	Source      string     `json:"source"`
	SourceID    string     `json:"source_id"`
	Description string     `json:"description"`
	AvailableAt *time.Time `json:"available_at"`
}

type accountView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Verified    bool   `json:"verified"`
}

type kycView struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type walletResponse struct {
	ID               string        `json:"id"`
	OwnerType        string        `json:"owner_type"`
	OwnerID          string        `json:"owner_id"`
	Currency         string        `json:"currency"`
	BalanceCents     int64         `json:"balance_cents"`
	PendingCents     int64         `json:"pending_cents"`
	ReservedCents    int64         `json:"reserved_cents"`
	AvailableCents   int64         `json:"available_cents"`
	AvailableDisplay string        `json:"available_display"`
	Kyc              *kycView      `json:"kyc,omitempty"`
	PayoutAccounts   []accountView `json:"payout_accounts"`
}

type transactionResponse struct {
	ID               string    `json:"id"`
	AmountCents      int64     `json:"amount_cents"`
	Type             string    `json:"type"`
	Source           string    `json:"source"`
	SourceID         string    `json:"source_id,omitempty"`
	Description      string    `json:"description,omitempty"`
	AvailableAt      time.Time `json:"available_at"`
	AppliedToBalance bool      `json:"applied_to_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// Me returns the caller's own wallet.
func (h *Handler) Me(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	summary, err := h.service.MyWallet(c.UserContext(), act)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(summary))
}

// Get returns one wallet by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	summary, err := h.service.Get(c.UserContext(), act, c.Params("walletId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(summary))
}

// Transactions lists wallet transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	txns, err := h.service.Transactions(c.UserContext(), act, c.Params("walletId"), c.QueryInt("limit", ledger.DefaultListLimit))
	if err != nil {
		return err
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Credit posts an administrative credit.
func (h *Handler) Credit(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	txn, err := h.service.Credit(c.UserContext(), act, CreditInput{
		Owner:       ledger.Owner{Type: ledger.OwnerType(req.OwnerType), ID: req.OwnerID},
		Currency:    req.Currency,
		AmountCents: req.AmountCents,
		Source:      ledger.Source(req.Source),
		SourceID:    req.SourceID,
		Description: req.Description,
		AvailableAt: req.AvailableAt,
	})
	status := http.StatusCreated
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		status, err = http.StatusOK, nil
	}
	if err != nil {
		return err
	}
	return c.Status(status).JSON(toTransactionResponse(txn))
}

// Debit posts an administrative debit.
func (h *Handler) Debit(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	txn, err := h.service.Debit(c.UserContext(), act, DebitInput{
		Owner:       ledger.Owner{Type: ledger.OwnerType(req.OwnerType), ID: req.OwnerID},
		Currency:    req.Currency,
		AmountCents: req.AmountCents,
		Source:      ledger.Source(req.Source),
		SourceID:    req.SourceID,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(txn))
}

func toWalletResponse(s Summary) walletResponse {
	out := walletResponse{
		ID:               s.Wallet.ID,
		OwnerType:        string(s.Wallet.OwnerType),
		OwnerID:          s.Wallet.OwnerID,
		Currency:         s.Wallet.Currency,
		BalanceCents:     s.Wallet.BalanceCents,
		PendingCents:     s.Wallet.PendingCents,
		ReservedCents:    s.ReservedCents,
		AvailableCents:   s.AvailableCents,
		AvailableDisplay: money.Format(s.AvailableCents, s.Wallet.Currency),
		PayoutAccounts:   make([]accountView, 0, len(s.PayoutAccounts)),
	}
	if s.Kyc != nil {
		out.Kyc = &kycView{ID: s.Kyc.ID, Status: string(s.Kyc.Status), UpdatedAt: s.Kyc.UpdatedAt}
	}
	for _, a := range s.PayoutAccounts {
		out.PayoutAccounts = append(out.PayoutAccounts, accountView{
			ID:          a.ID,
			Type:        string(a.Type),
			DisplayName: a.DisplayName,
			Verified:    a.VerifiedAt != nil,
		})
	}
	return out
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		AmountCents:      t.AmountCents,
		Type:             string(t.Type),
		Source:           string(t.Source),
		SourceID:         t.SourceID,
		Description:      t.Description,
		AvailableAt:      t.AvailableAt,
		AppliedToBalance: t.AppliedToBalance,
		CreatedAt:        t.CreatedAt,
	}
}
