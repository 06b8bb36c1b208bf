package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// Filter defines filtering options for collection queries
type Filter struct {
	shared.Filter
	InstitutionID *uuid.UUID // Filter by institution
	InspectorID   *uuid.UUID // Filter by inspector
	Status        *Status    // Filter by status
	DistrictName  *string    // Filter by district
	FromDate      *time.Time // Filter by collection date range start
	ToDate        *time.Time // Filter by collection date range end
}

// Repository defines the interface for collection persistence
type Repository interface {
	// FindByID finds a collection by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Collection, error)

	// FindAll finds collections with filtering
	FindAll(ctx context.Context, filter Filter) ([]Collection, error)

	// FindByInstitution finds collections for an institution
	FindByInstitution(ctx context.Context, institutionID uuid.UUID, filter Filter) ([]Collection, error)

	// FindAwaitingVerification finds collections in sent_to_accounts status
	FindAwaitingVerification(ctx context.Context, filter Filter) ([]Collection, error)

	// Save creates or updates a collection
	Save(ctx context.Context, c *Collection) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, c *Collection) error

	// SaveTransitionWithOutbox atomically commits a verification transition
	// together with its pending ledger mutation. The collection row is updated
	// with a conditional write guarded by the prior version AND
	// status = 'sent_to_accounts'; when another verifier got there first the
	// update matches no rows and ErrConcurrencyConflict is returned, with no
	// outbox entry written - the loser must not retry the ledger mutation.
	SaveTransitionWithOutbox(ctx context.Context, c *Collection, entry *shared.OutboxEntry) error

	// CountByStatus counts collections in the given status
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
