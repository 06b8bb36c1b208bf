package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/application/ledgersync"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrVersionMismatch is returned when the caller's expected version is stale
// before the transition is even attempted
var ErrVersionMismatch = errors.New("collection verification: record was modified, reload and retry")

// VerificationService handles the accountant side of the collection workflow.
// Approve and reject commit the status transition together with the pending
// ledger mutation in one transaction; the sync worker applies the mutation to
// the district partition afterwards.
type VerificationService struct {
	collectionRepo collection.Repository
	router         *ledger.Router
	logger         *zap.Logger
}

// VerificationServiceConfig holds configuration for the verification service
type VerificationServiceConfig struct {
	CollectionRepo collection.Repository
	Router         *ledger.Router
	Logger         *zap.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(config VerificationServiceConfig) *VerificationService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		collectionRepo: config.CollectionRepo,
		router:         config.Router,
		logger:         logger,
	}
}

// ApproveRequest carries the input for approving a collection
type ApproveRequest struct {
	CollectionID uuid.UUID  `json:"collection_id"`
	VerifierID   uuid.UUID  `json:"verifier_id"`
	ChallanNo    string     `json:"challan_no"`
	ChallanDate  *time.Time `json:"challan_date"`
	Remarks      string     `json:"remarks"`
	// ExpectedVersion, when non-zero, must match the loaded record's version.
	// The transition itself is additionally guarded by a conditional write, so
	// concurrent verifiers lose with a conflict rather than a double apply.
	ExpectedVersion int `json:"expected_version"`
}

// RejectRequest carries the input for rejecting a collection
type RejectRequest struct {
	CollectionID    uuid.UUID `json:"collection_id"`
	VerifierID      uuid.UUID `json:"verifier_id"`
	Reason          string    `json:"reason"`
	ExpectedVersion int       `json:"expected_version"`
}

// Approve verifies a collection. On success the provisional ledger credit is
// finalized asynchronously through the outbox.
func (s *VerificationService) Approve(ctx context.Context, req ApproveRequest) (*collection.Collection, error) {
	c, err := s.load(ctx, req.CollectionID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	partition, err := s.router.Resolve(c.DistrictName)
	if err != nil {
		return nil, err
	}

	if err := c.Approve(req.VerifierID, req.ChallanNo, req.ChallanDate, req.Remarks); err != nil {
		return nil, err
	}

	event, err := lastApprovedEvent(c)
	if err != nil {
		return nil, err
	}
	entry, err := ledgersync.NewFinalizeEntry(event, c, partition)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, c, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Collection approved",
		zap.String("collection_id", c.ID.String()),
		zap.String("verifier_id", req.VerifierID.String()),
		zap.String("challan_no", req.ChallanNo),
		zap.String("partition", partition.String()))

	return c, nil
}

// Reject declines a collection. On success the provisional ledger credit is
// rolled back asynchronously through the outbox, using the delta persisted at
// submission time.
func (s *VerificationService) Reject(ctx context.Context, req RejectRequest) (*collection.Collection, error) {
	c, err := s.load(ctx, req.CollectionID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	partition, err := s.router.Resolve(c.DistrictName)
	if err != nil {
		return nil, err
	}

	if err := c.Reject(req.VerifierID, req.Reason); err != nil {
		return nil, err
	}

	event, err := lastRejectedEvent(c)
	if err != nil {
		return nil, err
	}
	entry, err := ledgersync.NewRollbackEntry(event, c, partition)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, c, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Collection rejected",
		zap.String("collection_id", c.ID.String()),
		zap.String("verifier_id", req.VerifierID.String()),
		zap.String("reason", req.Reason),
		zap.String("partition", partition.String()))

	return c, nil
}

// ListAwaitingVerification returns collections in sent_to_accounts status
func (s *VerificationService) ListAwaitingVerification(ctx context.Context, filter collection.Filter) ([]collection.Collection, error) {
	return s.collectionRepo.FindAwaitingVerification(ctx, filter)
}

func (s *VerificationService) load(ctx context.Context, id uuid.UUID, expectedVersion int) (*collection.Collection, error) {
	c, err := s.collectionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	if expectedVersion > 0 && c.Version != expectedVersion {
		return nil, ErrVersionMismatch
	}
	return c, nil
}

func (s *VerificationService) commit(ctx context.Context, c *collection.Collection, entry *shared.OutboxEntry) error {
	if err := s.collectionRepo.SaveTransitionWithOutbox(ctx, c, entry); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			s.logger.Warn("Verification lost to a concurrent transition",
				zap.String("collection_id", c.ID.String()))
			return err
		}
		return fmt.Errorf("failed to commit verification transition: %w", err)
	}
	return nil
}

func lastApprovedEvent(c *collection.Collection) (*collection.CollectionApprovedEvent, error) {
	for i := len(c.GetDomainEvents()) - 1; i >= 0; i-- {
		if e, ok := c.GetDomainEvents()[i].(*collection.CollectionApprovedEvent); ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("collection %s raised no approval event", c.ID)
}

func lastRejectedEvent(c *collection.Collection) (*collection.CollectionRejectedEvent, error) {
	for i := len(c.GetDomainEvents()) - 1; i >= 0; i-- {
		if e, ok := c.GetDomainEvents()[i].(*collection.CollectionRejectedEvent); ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("collection %s raised no rejection event", c.ID)
}
