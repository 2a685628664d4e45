package ledger

import "time"

// OwnerType distinguishes individual wallet owners from agencies.
type OwnerType string

const (
	OwnerUser   OwnerType = "USER"
	OwnerAgency OwnerType = "AGENCY"
)

// Owner identifies the holder of a wallet.
type Owner struct {
	Type OwnerType
	ID   string
}

// Wallet holds the spendable and not-yet-matured balance of one owner in one currency.
type Wallet struct {
	ID           string
	OwnerType    OwnerType
	OwnerID      string
	Currency     string
	BalanceCents int64
	PendingCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Owner returns the wallet owner.
func (w Wallet) Owner() Owner {
	return Owner{Type: w.OwnerType, ID: w.OwnerID}
}

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	Credit TransactionType = "CREDIT"
	Debit  TransactionType = "DEBIT"
)

// Source describes what produced a wallet transaction.
type Source string

const (
	SourcePayment    Source = "PAYMENT"
	SourcePayout     Source = "PAYOUT"
	SourceAdjustment Source = "ADJUSTMENT"
	SourceDeposit    Source = "DEPOSIT"
	SourceReward     Source = "REWARD"
	SourceReferral   Source = "REFERRAL"
)

// ValidSource reports whether s is a known transaction source.
func ValidSource(s Source) bool {
	switch s {
	case SourcePayment, SourcePayout, SourceAdjustment, SourceDeposit, SourceReward, SourceReferral:
		return true
	}
	return false
}

// Transaction is an immutable credit or debit against a wallet. AppliedToBalance
// flips from false to true once, when a matured credit is folded into the balance.
type Transaction struct {
	ID               string
	WalletID         string
	AmountCents      int64
	Type             TransactionType
	Source           Source
	SourceID         string
	Description      string
	AvailableAt      time.Time
	AppliedToBalance bool
	CreatedAt        time.Time
}

// Method is a payout rail, shared by payout accounts and payout requests.
type Method string

const (
	MethodEcocash      Method = "ECOCASH"
	MethodOneMoney     Method = "ONEMONEY"
	MethodMobileMoney  Method = "MOBILE_MONEY"
	MethodBank         Method = "BANK"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodZipit        Method = "ZIPIT"
	MethodCash         Method = "CASH"
	MethodOther        Method = "OTHER"
)

// ValidMethod reports whether m is a known payout method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodEcocash, MethodOneMoney, MethodMobileMoney, MethodBank, MethodBankTransfer, MethodZipit, MethodCash, MethodOther:
		return true
	}
	return false
}

// PayoutAccount is a payout destination owned by a wallet owner.
type PayoutAccount struct {
	ID          string
	OwnerType   OwnerType
	OwnerID     string
	Type        Method
	DisplayName string
	Details     map[string]string
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}

// KycStatus is the review state of a KYC submission.
type KycStatus string

const (
	KycPending  KycStatus = "PENDING"
	KycVerified KycStatus = "VERIFIED"
	KycRejected KycStatus = "REJECTED"
)

// KycRecord is one identity verification submission. The latest by UpdatedAt wins.
type KycRecord struct {
	ID        string
	OwnerType OwnerType
	OwnerID   string
	IDType    string
	IDNumber  string
	DocURLs   []string
	Notes     string
	Status    KycStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerStanding is the risk view of an owner maintained by the identity system.
type OwnerStanding struct {
	OwnerType  OwnerType
	OwnerID    string
	Suspended  bool
	TrustScore int
}

// DefaultTrustScore applies to owners without a standing record.
const DefaultTrustScore = 10

// PayoutStatus is the state of a payout request.
type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "REQUESTED"
	PayoutReview     PayoutStatus = "REVIEW"
	PayoutApproved   PayoutStatus = "APPROVED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutSent       PayoutStatus = "SENT"
	PayoutPaid       PayoutStatus = "PAID"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

// ReservingStatuses hold funds: the request is in flight and not yet debited.
var ReservingStatuses = []PayoutStatus{
	PayoutRequested,
	PayoutReview,
	PayoutApproved,
	PayoutProcessing,
	PayoutSent,
}

// Reserving reports whether s counts against the available balance.
func (s PayoutStatus) Reserving() bool {
	for _, r := range ReservingStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s PayoutStatus) Terminal() bool {
	return s == PayoutPaid || s == PayoutFailed || s == PayoutCancelled
}

// ValidPayoutStatus reports whether s is a known payout status.
func ValidPayoutStatus(s PayoutStatus) bool {
	return s.Reserving() || s.Terminal()
}

// PayoutRequest is the payout state machine entity. It is never deleted.
type PayoutRequest struct {
	ID              string
	WalletID        string
	AmountCents     int64
	Method          Method
	PayoutAccountID string
	Status          PayoutStatus
	TxRef           string
	ScheduledFor    *time.Time
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PayoutExecution records one attempt against a settlement provider.
type PayoutExecution struct {
	ID              string
	PayoutRequestID string
	Provider        string
	ProviderRef     string
	AmountCents     int64
	Currency        string
	Status          string
	Response        []byte
	CreatedAt       time.Time
}

// PayoutFilter narrows payout request listings.
type PayoutFilter struct {
	WalletID string
	Status   PayoutStatus
	Limit    int
}

// FeatureFlag is a persisted on/off switch.
type FeatureFlag struct {
	Key       string
	Enabled   bool
	UpdatedAt time.Time
}
