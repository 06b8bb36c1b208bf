package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/collection"
)

// CollectionModel is the GORM model for collection records. The credited
// columns persist the exact provisional delta added to the ledger at
// submission time; rollbacks read these, never the mutable amount columns.
type CollectionModel struct {
	AggregateModel
	InstitutionID uuid.UUID `gorm:"type:uuid;not null;index"`
	GazetteNo     string    `gorm:"size:100;not null;index"`
	DistrictName  string    `gorm:"size:100;not null;index"`
	InspectorID   uuid.UUID `gorm:"type:uuid;not null;index"`

	Status string `gorm:"size:20;not null;index"`

	ArrearAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`

	CreditedArrears decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	CreditedCurrent decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`

	CollectionDate time.Time `gorm:"not null;index"`

	ChallanNo   string     `gorm:"size:100"`
	ChallanDate *time.Time `gorm:""`
	Remarks     string     `gorm:"type:text"`

	RejectionReason string `gorm:"type:text"`

	VerifierID *uuid.UUID `gorm:"type:uuid"`
	VerifiedAt *time.Time `gorm:""`
}

// TableName specifies the table name
func (CollectionModel) TableName() string {
	return "collections"
}

// ToDomain converts the model to a domain collection
func (m *CollectionModel) ToDomain() *collection.Collection {
	c := &collection.Collection{
		InstitutionID:   m.InstitutionID,
		GazetteNo:       m.GazetteNo,
		DistrictName:    m.DistrictName,
		InspectorID:     m.InspectorID,
		Status:          collection.Status(m.Status),
		ArrearAmount:    m.ArrearAmount,
		CurrentAmount:   m.CurrentAmount,
		TotalAmount:     m.TotalAmount,
		CreditedArrears: m.CreditedArrears,
		CreditedCurrent: m.CreditedCurrent,
		CollectionDate:  m.CollectionDate,
		ChallanNo:       m.ChallanNo,
		ChallanDate:     m.ChallanDate,
		Remarks:         m.Remarks,
		RejectionReason: m.RejectionReason,
		VerifierID:      m.VerifierID,
		VerifiedAt:      m.VerifiedAt,
	}
	c.ID = m.ID
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = m.UpdatedAt
	c.Version = m.Version
	return c
}

// FromDomain populates the model from a domain collection
func (m *CollectionModel) FromDomain(c *collection.Collection) {
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.Version = c.Version
	m.InstitutionID = c.InstitutionID
	m.GazetteNo = c.GazetteNo
	m.DistrictName = c.DistrictName
	m.InspectorID = c.InspectorID
	m.Status = c.Status.String()
	m.ArrearAmount = c.ArrearAmount
	m.CurrentAmount = c.CurrentAmount
	m.TotalAmount = c.TotalAmount
	m.CreditedArrears = c.CreditedArrears
	m.CreditedCurrent = c.CreditedCurrent
	m.CollectionDate = c.CollectionDate
	m.ChallanNo = c.ChallanNo
	m.ChallanDate = c.ChallanDate
	m.Remarks = c.Remarks
	m.RejectionReason = c.RejectionReason
	m.VerifierID = c.VerifierID
	m.VerifiedAt = c.VerifiedAt
}
