package collection

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/domain/shared/valueobject"
)

// Status represents the lifecycle state of a collection record
type Status string

const (
	StatusPending        Status = "pending"          // Created by the inspector, not yet submitted
	StatusSentToAccounts Status = "sent_to_accounts" // Submitted for verification, ledger provisionally credited
	StatusVerified       Status = "verified"         // Approved by an accountant, terminal
	StatusRejected       Status = "rejected"         // Rejected by an accountant, terminal
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSentToAccounts, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the collection is in a terminal state.
// Verified and rejected collections are immutable to further edits.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// CanVerify returns true if an accountant can act on this status
func (s Status) CanVerify() bool {
	return s == StatusSentToAccounts
}

// Collection is the central ledger row for one inspector submission against an
// institution. The district name is denormalized so the record can be routed
// to its ledger partition without a master-data lookup on every transition.
type Collection struct {
	shared.BaseAggregateRoot
	InstitutionID uuid.UUID `json:"institution_id"`
	GazetteNo     string    `json:"gazette_no"`
	DistrictName  string    `json:"district_name"`
	InspectorID   uuid.UUID `json:"inspector_id"`

	Status Status `json:"status"`

	ArrearAmount  decimal.Decimal `json:"arrear_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`

	// The exact provisional delta credited to the ledger at submission time.
	// Rollback always uses these, never the mutable amount fields above.
	CreditedArrears decimal.Decimal `json:"credited_arrears"`
	CreditedCurrent decimal.Decimal `json:"credited_current"`

	CollectionDate time.Time `json:"collection_date"`

	ChallanNo   string     `json:"challan_no"`
	ChallanDate *time.Time `json:"challan_date"`
	Remarks     string     `json:"remarks"`

	RejectionReason string `json:"rejection_reason"`

	VerifierID *uuid.UUID `json:"verifier_id"`
	VerifiedAt *time.Time `json:"verified_at"`
}

// NewCollection creates a new collection record in pending status
func NewCollection(
	institutionID uuid.UUID,
	gazetteNo string,
	districtName string,
	inspectorID uuid.UUID,
	arrearAmount valueobject.Money,
	currentAmount valueobject.Money,
	collectionDate time.Time,
) (*Collection, error) {
	if institutionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INSTITUTION", "Institution ID cannot be empty")
	}
	if gazetteNo == "" {
		return nil, shared.NewDomainError("INVALID_GAZETTE_NO", "Gazette number cannot be empty")
	}
	if districtName == "" {
		return nil, shared.NewDomainError("INVALID_DISTRICT", "District name cannot be empty")
	}
	if inspectorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INSPECTOR", "Inspector ID cannot be empty")
	}
	if arrearAmount.IsNegative() || currentAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Collection amounts cannot be negative")
	}
	if arrearAmount.IsZero() && currentAmount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Collection must be non-zero")
	}

	c := &Collection{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InstitutionID:     institutionID,
		GazetteNo:         gazetteNo,
		DistrictName:      districtName,
		InspectorID:       inspectorID,
		Status:            StatusPending,
		ArrearAmount:      arrearAmount.Amount(),
		CurrentAmount:     currentAmount.Amount(),
		TotalAmount:       arrearAmount.Amount().Add(currentAmount.Amount()),
		CollectionDate:    collectionDate,
	}

	c.AddDomainEvent(NewCollectionCreatedEvent(c))

	return c, nil
}

// SendToAccounts submits the collection for verification. The caller credits
// the ledger provisionally in the same workflow; the credited delta is
// persisted here so a later rollback reverses exactly what was added.
func (c *Collection) SendToAccounts() error {
	if c.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit collection in %s status", c.Status))
	}

	c.Status = StatusSentToAccounts
	c.CreditedArrears = c.ArrearAmount
	c.CreditedCurrent = c.CurrentAmount
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionSubmittedEvent(c))

	return nil
}

// Approve verifies the collection. Requires a non-empty challan number; stamps
// the verifier and verification time. Terminal - a verified collection is
// immutable to further edits. The paired ledger finalize is enqueued by the
// application layer.
func (c *Collection) Approve(verifierID uuid.UUID, challanNo string, challanDate *time.Time, remarks string) error {
	if !c.Status.CanVerify() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve collection in %s status", c.Status))
	}
	if verifierID == uuid.Nil {
		return shared.NewDomainError("INVALID_VERIFIER", "Verifier ID cannot be empty")
	}
	if challanNo == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Challan number is required to approve a collection")
	}

	now := time.Now()
	c.Status = StatusVerified
	c.ChallanNo = challanNo
	c.ChallanDate = challanDate
	c.Remarks = remarks
	c.VerifierID = &verifierID
	c.VerifiedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionApprovedEvent(c))

	return nil
}

// Reject declines the collection. Requires a non-empty reason. Terminal. The
// paired ledger rollback - using the persisted credited delta - is enqueued by
// the application layer.
func (c *Collection) Reject(verifierID uuid.UUID, reason string) error {
	if !c.Status.CanVerify() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reject collection in %s status", c.Status))
	}
	if verifierID == uuid.Nil {
		return shared.NewDomainError("INVALID_VERIFIER", "Verifier ID cannot be empty")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Rejection reason is required to reject a collection")
	}

	now := time.Now()
	c.Status = StatusRejected
	c.RejectionReason = reason
	c.VerifierID = &verifierID
	c.VerifiedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	c.AddDomainEvent(NewCollectionRejectedEvent(c))

	return nil
}

// CreditedDelta returns the provisional amounts credited at submission time
func (c *Collection) CreditedDelta() (arrears, current decimal.Decimal) {
	return c.CreditedArrears, c.CreditedCurrent
}

// GetArrearAmountMoney returns the arrear amount as Money
func (c *Collection) GetArrearAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(c.ArrearAmount)
}

// GetCurrentAmountMoney returns the current amount as Money
func (c *Collection) GetCurrentAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(c.CurrentAmount)
}

// GetTotalAmountMoney returns the total amount as Money
func (c *Collection) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(c.TotalAmount)
}

// IsPending returns true if the collection has not been submitted yet
func (c *Collection) IsPending() bool {
	return c.Status == StatusPending
}

// IsAwaitingVerification returns true if the collection is with accounts
func (c *Collection) IsAwaitingVerification() bool {
	return c.Status == StatusSentToAccounts
}

// IsVerified returns true if the collection was approved
func (c *Collection) IsVerified() bool {
	return c.Status == StatusVerified
}

// IsRejected returns true if the collection was rejected
func (c *Collection) IsRejected() bool {
	return c.Status == StatusRejected
}
