package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// OutboxEntryModel is the GORM model for pending ledger mutations. Entries are
// written in the same transaction as the collection transition that caused
// them; the sync worker drains the table afterwards.
type OutboxEntryModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	EventType      string     `gorm:"size:100;not null;index"`
	AggregateID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	AggregateType  string     `gorm:"size:100;not null"`
	IdempotencyKey string     `gorm:"size:200;not null;uniqueIndex"`
	Payload        []byte     `gorm:"type:jsonb;not null"`
	Status         string     `gorm:"size:20;not null;index"`
	RetryCount     int        `gorm:"not null"`
	MaxRetries     int        `gorm:"not null"`
	LastError      string     `gorm:"type:text"`
	NextRetryAt    *time.Time `gorm:"index"`
	ProcessedAt    *time.Time `gorm:""`
	CreatedAt      time.Time  `gorm:"not null;index"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName specifies the table name
func (OutboxEntryModel) TableName() string {
	return "ledger_outbox"
}

// ToDomain converts the model to a domain outbox entry
func (m *OutboxEntryModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:             m.ID,
		EventID:        m.EventID,
		EventType:      m.EventType,
		AggregateID:    m.AggregateID,
		AggregateType:  m.AggregateType,
		IdempotencyKey: m.IdempotencyKey,
		Payload:        m.Payload,
		Status:         shared.OutboxStatus(m.Status),
		RetryCount:     m.RetryCount,
		MaxRetries:     m.MaxRetries,
		LastError:      m.LastError,
		NextRetryAt:    m.NextRetryAt,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain outbox entry
func (m *OutboxEntryModel) FromDomain(e *shared.OutboxEntry) {
	m.ID = e.ID
	m.EventID = e.EventID
	m.EventType = e.EventType
	m.AggregateID = e.AggregateID
	m.AggregateType = e.AggregateType
	m.IdempotencyKey = e.IdempotencyKey
	m.Payload = e.Payload
	m.Status = string(e.Status)
	m.RetryCount = e.RetryCount
	m.MaxRetries = e.MaxRetries
	m.LastError = e.LastError
	m.NextRetryAt = e.NextRetryAt
	m.ProcessedAt = e.ProcessedAt
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
