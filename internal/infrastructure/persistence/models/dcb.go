package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/ledger"
)

// DCBEntryModel is the GORM model for one row of a district ledger partition.
// It deliberately has no TableName: every district owns its own physical table
// and the repository binds the model with db.Table(partitionID) per query.
type DCBEntryModel struct {
	GazetteNo       string `gorm:"size:100;primaryKey"`
	InstitutionName string `gorm:"size:255;not null"`
	Mandal          string `gorm:"size:100"`
	Village         string `gorm:"size:100"`

	ExtentDry   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ExtentWet   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ExtentTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	DemandArrears decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DemandCurrent decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DemandTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null"`

	CollectionArrears decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CollectionCurrent decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	CollectionTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null"`

	BalanceArrears decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	BalanceCurrent decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	BalanceTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null"`

	IsProvisional bool       `gorm:"not null"`
	ChallanNo     string     `gorm:"size:100"`
	ChallanDate   *time.Time `gorm:""`
	ReceiptNo     string     `gorm:"size:100"`
	ReceiptDate   *time.Time `gorm:""`
	Remarks       string     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts the model to a domain ledger entry
func (m *DCBEntryModel) ToDomain() *ledger.Entry {
	return &ledger.Entry{
		GazetteNo:         m.GazetteNo,
		InstitutionName:   m.InstitutionName,
		Mandal:            m.Mandal,
		Village:           m.Village,
		ExtentDry:         m.ExtentDry,
		ExtentWet:         m.ExtentWet,
		ExtentTotal:       m.ExtentTotal,
		DemandArrears:     m.DemandArrears,
		DemandCurrent:     m.DemandCurrent,
		DemandTotal:       m.DemandTotal,
		CollectionArrears: m.CollectionArrears,
		CollectionCurrent: m.CollectionCurrent,
		CollectionTotal:   m.CollectionTotal,
		BalanceArrears:    m.BalanceArrears,
		BalanceCurrent:    m.BalanceCurrent,
		BalanceTotal:      m.BalanceTotal,
		IsProvisional:     m.IsProvisional,
		ChallanNo:         m.ChallanNo,
		ChallanDate:       m.ChallanDate,
		ReceiptNo:         m.ReceiptNo,
		ReceiptDate:       m.ReceiptDate,
		Remarks:           m.Remarks,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain ledger entry
func (m *DCBEntryModel) FromDomain(e *ledger.Entry) {
	m.GazetteNo = e.GazetteNo
	m.InstitutionName = e.InstitutionName
	m.Mandal = e.Mandal
	m.Village = e.Village
	m.ExtentDry = e.ExtentDry
	m.ExtentWet = e.ExtentWet
	m.ExtentTotal = e.ExtentTotal
	m.DemandArrears = e.DemandArrears
	m.DemandCurrent = e.DemandCurrent
	m.DemandTotal = e.DemandTotal
	m.CollectionArrears = e.CollectionArrears
	m.CollectionCurrent = e.CollectionCurrent
	m.CollectionTotal = e.CollectionTotal
	m.BalanceArrears = e.BalanceArrears
	m.BalanceCurrent = e.BalanceCurrent
	m.BalanceTotal = e.BalanceTotal
	m.IsProvisional = e.IsProvisional
	m.ChallanNo = e.ChallanNo
	m.ChallanDate = e.ChallanDate
	m.ReceiptNo = e.ReceiptNo
	m.ReceiptDate = e.ReceiptDate
	m.Remarks = e.Remarks
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
