package models

import (
	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/masterdata"
)

// DistrictModel is the GORM model for districts
type DistrictModel struct {
	BaseModel
	Name   string `gorm:"size:100;not null;uniqueIndex"`
	Active bool   `gorm:"not null;default:true"`
}

// TableName specifies the table name
func (DistrictModel) TableName() string {
	return "districts"
}

// ToDomain converts the model to a domain district
func (m *DistrictModel) ToDomain() *masterdata.District {
	d := &masterdata.District{
		Name:   m.Name,
		Active: m.Active,
	}
	d.ID = m.ID
	d.CreatedAt = m.CreatedAt
	d.UpdatedAt = m.UpdatedAt
	return d
}

// FromDomain populates the model from a domain district
func (m *DistrictModel) FromDomain(d *masterdata.District) {
	m.ID = d.ID
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	m.Name = d.Name
	m.Active = d.Active
}

// InstitutionModel is the GORM model for institutions
type InstitutionModel struct {
	BaseModel
	DistrictID   uuid.UUID `gorm:"type:uuid;not null;index"`
	DistrictName string    `gorm:"size:100;not null"`
	Name         string    `gorm:"size:255;not null"`
	GazetteNo    string    `gorm:"size:100;not null;uniqueIndex"`
	Mandal       string    `gorm:"size:100"`
	Village      string    `gorm:"size:100"`
}

// TableName specifies the table name
func (InstitutionModel) TableName() string {
	return "institutions"
}

// ToDomain converts the model to a domain institution
func (m *InstitutionModel) ToDomain() *masterdata.Institution {
	inst := &masterdata.Institution{
		DistrictID:   m.DistrictID,
		DistrictName: m.DistrictName,
		Name:         m.Name,
		GazetteNo:    m.GazetteNo,
		Mandal:       m.Mandal,
		Village:      m.Village,
	}
	inst.ID = m.ID
	inst.CreatedAt = m.CreatedAt
	inst.UpdatedAt = m.UpdatedAt
	return inst
}

// FromDomain populates the model from a domain institution
func (m *InstitutionModel) FromDomain(inst *masterdata.Institution) {
	m.ID = inst.ID
	m.CreatedAt = inst.CreatedAt
	m.UpdatedAt = inst.UpdatedAt
	m.DistrictID = inst.DistrictID
	m.DistrictName = inst.DistrictName
	m.Name = inst.Name
	m.GazetteNo = inst.GazetteNo
	m.Mandal = inst.Mandal
	m.Village = inst.Village
}
