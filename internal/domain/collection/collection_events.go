package collection

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// Event types for the collection aggregate
const (
	EventTypeCollectionCreated   = "collection.created"
	EventTypeCollectionSubmitted = "collection.submitted"
	EventTypeCollectionApproved  = "collection.approved"
	EventTypeCollectionRejected  = "collection.rejected"
)

// AggregateTypeCollection identifies the aggregate in events and the outbox
const AggregateTypeCollection = "Collection"

// CollectionCreatedEvent is raised when an inspector records a collection
type CollectionCreatedEvent struct {
	shared.BaseDomainEvent
	GazetteNo    string          `json:"gazette_no"`
	DistrictName string          `json:"district_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewCollectionCreatedEvent creates a new CollectionCreatedEvent
func NewCollectionCreatedEvent(c *Collection) *CollectionCreatedEvent {
	return &CollectionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionCreated, AggregateTypeCollection, c.ID),
		GazetteNo:       c.GazetteNo,
		DistrictName:    c.DistrictName,
		TotalAmount:     c.TotalAmount,
	}
}

// CollectionSubmittedEvent is raised when a collection is sent to accounts.
// It carries the provisional delta credited to the ledger.
type CollectionSubmittedEvent struct {
	shared.BaseDomainEvent
	GazetteNo       string          `json:"gazette_no"`
	DistrictName    string          `json:"district_name"`
	CreditedArrears decimal.Decimal `json:"credited_arrears"`
	CreditedCurrent decimal.Decimal `json:"credited_current"`
}

// NewCollectionSubmittedEvent creates a new CollectionSubmittedEvent
func NewCollectionSubmittedEvent(c *Collection) *CollectionSubmittedEvent {
	return &CollectionSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionSubmitted, AggregateTypeCollection, c.ID),
		GazetteNo:       c.GazetteNo,
		DistrictName:    c.DistrictName,
		CreditedArrears: c.CreditedArrears,
		CreditedCurrent: c.CreditedCurrent,
	}
}

// CollectionApprovedEvent is raised when an accountant approves a collection.
// The ledger sync worker finalizes the provisional credit from this payload.
type CollectionApprovedEvent struct {
	shared.BaseDomainEvent
	GazetteNo    string     `json:"gazette_no"`
	DistrictName string     `json:"district_name"`
	ChallanNo    string     `json:"challan_no"`
	ChallanDate  *time.Time `json:"challan_date"`
	Remarks      string     `json:"remarks"`
}

// NewCollectionApprovedEvent creates a new CollectionApprovedEvent
func NewCollectionApprovedEvent(c *Collection) *CollectionApprovedEvent {
	return &CollectionApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionApproved, AggregateTypeCollection, c.ID),
		GazetteNo:       c.GazetteNo,
		DistrictName:    c.DistrictName,
		ChallanNo:       c.ChallanNo,
		ChallanDate:     c.ChallanDate,
		Remarks:         c.Remarks,
	}
}

// CollectionRejectedEvent is raised when an accountant rejects a collection.
// The ledger sync worker rolls back exactly the credited delta carried here.
type CollectionRejectedEvent struct {
	shared.BaseDomainEvent
	GazetteNo       string          `json:"gazette_no"`
	DistrictName    string          `json:"district_name"`
	Reason          string          `json:"reason"`
	CreditedArrears decimal.Decimal `json:"credited_arrears"`
	CreditedCurrent decimal.Decimal `json:"credited_current"`
}

// NewCollectionRejectedEvent creates a new CollectionRejectedEvent
func NewCollectionRejectedEvent(c *Collection) *CollectionRejectedEvent {
	return &CollectionRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionRejected, AggregateTypeCollection, c.ID),
		GazetteNo:       c.GazetteNo,
		DistrictName:    c.DistrictName,
		Reason:          c.RejectionReason,
		CreditedArrears: c.CreditedArrears,
		CreditedCurrent: c.CreditedCurrent,
	}
}
