package ledgersync

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// MutationKind discriminates the two guarded ledger mutations
type MutationKind string

const (
	MutationFinalize MutationKind = "FINALIZE"
	MutationRollback MutationKind = "ROLLBACK"
)

// Mutation is the outbox payload describing one pending ledger mutation. It is
// written in the same transaction as the collection status change and applied
// by the sync worker at-least-once; the idempotency key on the outbox entry
// makes the effective application exactly-once.
type Mutation struct {
	Kind         MutationKind          `json:"kind"`
	CollectionID uuid.UUID             `json:"collection_id"`
	Partition    ledger.PartitionID    `json:"partition"`
	GazetteNo    string                `json:"gazette_no"`
	Challan      ledger.ChallanDetails `json:"challan,omitempty"`
	ArrearDelta  decimal.Decimal       `json:"arrear_delta"`
	CurrentDelta decimal.Decimal       `json:"current_delta"`
}

// Validate checks the mutation is internally consistent
func (m *Mutation) Validate() error {
	switch m.Kind {
	case MutationFinalize:
		if m.Challan.ChallanNo == "" {
			return shared.NewDomainError("INVALID_MUTATION", "Finalize mutation requires a challan number")
		}
	case MutationRollback:
		if m.ArrearDelta.IsNegative() || m.CurrentDelta.IsNegative() {
			return shared.NewDomainError("INVALID_MUTATION", "Rollback deltas cannot be negative")
		}
	default:
		return shared.NewDomainError("INVALID_MUTATION", fmt.Sprintf("Unknown mutation kind %q", m.Kind))
	}
	if m.Partition == "" {
		return shared.NewDomainError("INVALID_MUTATION", "Mutation requires a partition")
	}
	if m.GazetteNo == "" {
		return shared.NewDomainError("INVALID_MUTATION", "Mutation requires a gazette number")
	}
	return nil
}

// IdempotencyKey returns the key that makes this mutation exactly-once. One
// verification transition produces exactly one key.
func (m *Mutation) IdempotencyKey() string {
	return fmt.Sprintf("ledger:%s:%s", m.Kind, m.CollectionID)
}

// NewFinalizeEntry builds the outbox entry confirming a provisional credit
// after an approval.
func NewFinalizeEntry(event *collection.CollectionApprovedEvent, c *collection.Collection, partition ledger.PartitionID) (*shared.OutboxEntry, error) {
	m := &Mutation{
		Kind:         MutationFinalize,
		CollectionID: c.ID,
		Partition:    partition,
		GazetteNo:    c.GazetteNo,
		Challan: ledger.ChallanDetails{
			ChallanNo:   c.ChallanNo,
			ChallanDate: c.ChallanDate,
			Remarks:     c.Remarks,
		},
	}
	return newEntry(event, m)
}

// NewRollbackEntry builds the outbox entry reversing a provisional credit
// after a rejection. The deltas come from the credited amounts persisted at
// submission time, never from the collection's mutable amount fields.
func NewRollbackEntry(event *collection.CollectionRejectedEvent, c *collection.Collection, partition ledger.PartitionID) (*shared.OutboxEntry, error) {
	arrears, current := c.CreditedDelta()
	m := &Mutation{
		Kind:         MutationRollback,
		CollectionID: c.ID,
		Partition:    partition,
		GazetteNo:    c.GazetteNo,
		ArrearDelta:  arrears,
		CurrentDelta: current,
	}
	return newEntry(event, m)
}

func newEntry(event shared.DomainEvent, m *Mutation) (*shared.OutboxEntry, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger mutation: %w", err)
	}
	return shared.NewOutboxEntry(event, m.IdempotencyKey(), payload), nil
}

// DecodeMutation decodes an outbox payload back into a Mutation
func DecodeMutation(payload []byte) (*Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode ledger mutation: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
