package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/masterdata"
	"github.com/wakfboard/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

var (
	// ErrInstitutionNotFound is returned when the referenced institution does not exist
	ErrInstitutionNotFound = errors.New("collection submission: institution not found")
	// ErrCollectionNotFound is returned when the collection record does not exist
	ErrCollectionNotFound = errors.New("collection submission: collection not found")
	// ErrNotOwner is returned when an inspector acts on another inspector's record
	ErrNotOwner = errors.New("collection submission: record belongs to another inspector")
)

// SubmissionService handles the inspector side of the collection workflow:
// recording a collection and sending it to accounts, which provisionally
// credits the district ledger partition.
type SubmissionService struct {
	collectionRepo  collection.Repository
	institutionRepo masterdata.InstitutionRepository
	ledgerRepo      ledger.PartitionRepository
	router          *ledger.Router
	logger          *zap.Logger
}

// SubmissionServiceConfig holds configuration for the submission service
type SubmissionServiceConfig struct {
	CollectionRepo  collection.Repository
	InstitutionRepo masterdata.InstitutionRepository
	LedgerRepo      ledger.PartitionRepository
	Router          *ledger.Router
	Logger          *zap.Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(config SubmissionServiceConfig) *SubmissionService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		collectionRepo:  config.CollectionRepo,
		institutionRepo: config.InstitutionRepo,
		ledgerRepo:      config.LedgerRepo,
		router:          config.Router,
		logger:          logger,
	}
}

// CreateCollectionRequest carries the input for recording a collection
type CreateCollectionRequest struct {
	InstitutionID  uuid.UUID       `json:"institution_id"`
	InspectorID    uuid.UUID       `json:"inspector_id"`
	ArrearAmount   decimal.Decimal `json:"arrear_amount"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	CollectionDate time.Time       `json:"collection_date"`
}

// CreateCollection records a new collection in pending status. The gazette
// number and district name are denormalized from institution master data so
// later transitions can route to the ledger partition without a lookup.
func (s *SubmissionService) CreateCollection(ctx context.Context, req CreateCollectionRequest) (*collection.Collection, error) {
	inst, err := s.institutionRepo.FindByID(ctx, req.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load institution: %w", err)
	}
	if inst == nil {
		return nil, ErrInstitutionNotFound
	}

	// fail fast when the institution's district has no registered partition
	if _, err := s.router.Resolve(inst.DistrictName); err != nil {
		return nil, err
	}

	c, err := collection.NewCollection(
		inst.ID,
		inst.GazetteNo,
		inst.DistrictName,
		req.InspectorID,
		valueobject.NewMoneyINR(req.ArrearAmount),
		valueobject.NewMoneyINR(req.CurrentAmount),
		req.CollectionDate,
	)
	if err != nil {
		return nil, err
	}

	if err := s.collectionRepo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save collection: %w", err)
	}

	s.logger.Info("Collection recorded",
		zap.String("collection_id", c.ID.String()),
		zap.String("gazette_no", c.GazetteNo),
		zap.String("district", c.DistrictName),
		zap.String("total_amount", c.TotalAmount.String()))

	return c, nil
}

// SubmitToAccounts moves a pending collection to sent_to_accounts and credits
// the district partition provisionally. The credited delta is persisted on the
// collection so a later rejection reverses exactly this amount.
func (s *SubmissionService) SubmitToAccounts(ctx context.Context, collectionID, inspectorID uuid.UUID) (*collection.Collection, error) {
	c, err := s.collectionRepo.FindByID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	if c.InspectorID != inspectorID {
		return nil, ErrNotOwner
	}

	partition, err := s.router.Resolve(c.DistrictName)
	if err != nil {
		return nil, err
	}

	if err := c.SendToAccounts(); err != nil {
		return nil, err
	}

	arrears, current := c.CreditedDelta()
	if err := s.ledgerRepo.ApplyProvisionalCredit(ctx, partition, c.GazetteNo, arrears, current); err != nil {
		return nil, fmt.Errorf("failed to credit ledger partition %s: %w", partition, err)
	}

	if err := s.collectionRepo.SaveWithLock(ctx, c); err != nil {
		// the partition was already credited; reverse it so the ledger does
		// not drift from the central record
		if rbErr := s.ledgerRepo.Rollback(ctx, partition, c.GazetteNo, arrears, current); rbErr != nil {
			s.logger.Error("Failed to reverse provisional credit after save failure",
				zap.String("collection_id", c.ID.String()),
				zap.String("partition", partition.String()),
				zap.Error(rbErr))
		}
		return nil, fmt.Errorf("failed to save collection: %w", err)
	}

	s.logger.Info("Collection sent to accounts",
		zap.String("collection_id", c.ID.String()),
		zap.String("partition", partition.String()),
		zap.String("credited_arrears", arrears.String()),
		zap.String("credited_current", current.String()))

	return c, nil
}
