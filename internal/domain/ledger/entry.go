package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// ChallanDetails carries the treasury challan metadata stamped when a
// provisional credit is confirmed.
type ChallanDetails struct {
	ChallanNo   string     `json:"challan_no"`
	ChallanDate *time.Time `json:"challan_date"`
	ReceiptNo   string     `json:"receipt_no"`
	ReceiptDate *time.Time `json:"receipt_date"`
	Remarks     string     `json:"remarks"`
}

// Entry is one institution's DCB row inside a district partition, keyed by
// gazette number. Demand is what the institution owes for the year, collection
// is what has actually been received, balance is the difference.
type Entry struct {
	GazetteNo       string `json:"gazette_no"`
	InstitutionName string `json:"institution_name"`
	Mandal          string `json:"mandal"`
	Village         string `json:"village"`

	ExtentDry   decimal.Decimal `json:"extent_dry"`
	ExtentWet   decimal.Decimal `json:"extent_wet"`
	ExtentTotal decimal.Decimal `json:"extent_total"`

	DemandArrears decimal.Decimal `json:"demand_arrears"`
	DemandCurrent decimal.Decimal `json:"demand_current"`
	DemandTotal   decimal.Decimal `json:"demand_total"`

	CollectionArrears decimal.Decimal `json:"collection_arrears"`
	CollectionCurrent decimal.Decimal `json:"collection_current"`
	CollectionTotal   decimal.Decimal `json:"collection_total"`

	BalanceArrears decimal.Decimal `json:"balance_arrears"`
	BalanceCurrent decimal.Decimal `json:"balance_current"`
	BalanceTotal   decimal.Decimal `json:"balance_total"`

	IsProvisional bool       `json:"is_provisional"`
	ChallanNo     string     `json:"challan_no"`
	ChallanDate   *time.Time `json:"challan_date"`
	ReceiptNo     string     `json:"receipt_no"`
	ReceiptDate   *time.Time `json:"receipt_date"`
	Remarks       string     `json:"remarks"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntry seeds a ledger entry for an institution, optionally with extent and
// opening demand figures.
func NewEntry(gazetteNo, institutionName string) (*Entry, error) {
	if gazetteNo == "" {
		return nil, shared.NewDomainError("INVALID_GAZETTE_NO", "Gazette number cannot be empty")
	}
	if institutionName == "" {
		return nil, shared.NewDomainError("INVALID_INSTITUTION_NAME", "Institution name cannot be empty")
	}
	now := time.Now()
	e := &Entry{
		GazetteNo:       gazetteNo,
		InstitutionName: institutionName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e.Recompute()
	return e, nil
}

// Recompute refreshes the derived totals and balances. The original store kept
// these as generated columns; here every mutation path must call it.
func (e *Entry) Recompute() {
	e.ExtentTotal = e.ExtentDry.Add(e.ExtentWet)
	e.DemandTotal = e.DemandArrears.Add(e.DemandCurrent)
	e.CollectionTotal = e.CollectionArrears.Add(e.CollectionCurrent)
	e.BalanceArrears = e.DemandArrears.Sub(e.CollectionArrears)
	e.BalanceCurrent = e.DemandCurrent.Sub(e.CollectionCurrent)
	e.BalanceTotal = e.DemandTotal.Sub(e.CollectionTotal)
}

// SetDemand sets the demand figures and recomputes derived values
func (e *Entry) SetDemand(arrears, current decimal.Decimal) error {
	if arrears.IsNegative() || current.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Demand figures cannot be negative")
	}
	e.DemandArrears = arrears
	e.DemandCurrent = current
	e.Recompute()
	e.UpdatedAt = time.Now()
	return nil
}

// SetExtent sets the land extent figures and recomputes the total
func (e *Entry) SetExtent(dry, wet decimal.Decimal) error {
	if dry.IsNegative() || wet.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Extent figures cannot be negative")
	}
	e.ExtentDry = dry
	e.ExtentWet = wet
	e.Recompute()
	e.UpdatedAt = time.Now()
	return nil
}

// ApplyProvisionalCredit adds a submission's amounts to the collection figures
// and flags the entry provisional until an accountant confirms or rejects it.
func (e *Entry) ApplyProvisionalCredit(arrears, current decimal.Decimal) error {
	if arrears.IsNegative() || current.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Credit amounts cannot be negative")
	}
	if arrears.IsZero() && current.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Credit must be non-zero")
	}
	e.CollectionArrears = e.CollectionArrears.Add(arrears)
	e.CollectionCurrent = e.CollectionCurrent.Add(current)
	e.IsProvisional = true
	e.Recompute()
	e.UpdatedAt = time.Now()
	return nil
}

// Finalize confirms a provisional credit: clears the provisional flag and
// stamps the challan metadata. The amount was already credited at submission
// time, so collection figures do not change. Idempotent - finalizing an entry
// that is no longer provisional is a no-op.
func (e *Entry) Finalize(challan ChallanDetails) {
	if !e.IsProvisional {
		return
	}
	e.IsProvisional = false
	e.ChallanNo = challan.ChallanNo
	e.ChallanDate = challan.ChallanDate
	e.ReceiptNo = challan.ReceiptNo
	e.ReceiptDate = challan.ReceiptDate
	if challan.Remarks != "" {
		e.Remarks = challan.Remarks
	}
	e.UpdatedAt = time.Now()
}

// Rollback reverses a provisional credit by subtracting the given deltas from
// the collection figures. NOT idempotent: applying the same deltas twice
// double-subtracts, so callers must guarantee exactly-once invocation per
// rejection.
func (e *Entry) Rollback(arrearDelta, currentDelta decimal.Decimal) error {
	if arrearDelta.IsNegative() || currentDelta.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Rollback deltas cannot be negative")
	}
	if arrearDelta.GreaterThan(e.CollectionArrears) || currentDelta.GreaterThan(e.CollectionCurrent) {
		return shared.NewDomainError("ROLLBACK_EXCEEDS_COLLECTION",
			fmt.Sprintf("Rollback of %s/%s exceeds collected %s/%s",
				arrearDelta, currentDelta, e.CollectionArrears, e.CollectionCurrent))
	}
	e.CollectionArrears = e.CollectionArrears.Sub(arrearDelta)
	e.CollectionCurrent = e.CollectionCurrent.Sub(currentDelta)
	e.IsProvisional = false
	e.Recompute()
	e.UpdatedAt = time.Now()
	return nil
}

// IsVerified reports whether the entry's collection figures are confirmed
func (e *Entry) IsVerified() bool {
	return !e.IsProvisional
}
