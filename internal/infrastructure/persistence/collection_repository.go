package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// CollectionRepository implements collection.Repository using GORM
type CollectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// FindByID finds a collection by ID. Returns (nil, nil) when no record exists.
func (r *CollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*collection.Collection, error) {
	var model models.CollectionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll finds collections with filtering
func (r *CollectionRepository) FindAll(ctx context.Context, filter collection.Filter) ([]collection.Collection, error) {
	var modelList []models.CollectionModel
	query := r.applyFilter(r.db.WithContext(ctx), filter)
	if err := query.Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to find collections: %w", err)
	}
	return toDomainCollections(modelList), nil
}

// FindByInstitution finds collections for an institution
func (r *CollectionRepository) FindByInstitution(ctx context.Context, institutionID uuid.UUID, filter collection.Filter) ([]collection.Collection, error) {
	filter.InstitutionID = &institutionID
	return r.FindAll(ctx, filter)
}

// FindAwaitingVerification finds collections in sent_to_accounts status
func (r *CollectionRepository) FindAwaitingVerification(ctx context.Context, filter collection.Filter) ([]collection.Collection, error) {
	status := collection.StatusSentToAccounts
	filter.Status = &status
	return r.FindAll(ctx, filter)
}

// Save creates or updates a collection
func (r *CollectionRepository) Save(ctx context.Context, c *collection.Collection) error {
	var model models.CollectionModel
	model.FromDomain(c)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The update is conditioned on the
// version the aggregate was loaded with (current version minus one, since
// state transitions increment it); zero rows affected means another writer got
// there first.
func (r *CollectionRepository) SaveWithLock(ctx context.Context, c *collection.Collection) error {
	var model models.CollectionModel
	model.FromDomain(c)

	result := r.db.WithContext(ctx).
		Model(&models.CollectionModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(collectionUpdateColumns(&model))
	if result.Error != nil {
		return fmt.Errorf("failed to save collection with lock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveTransitionWithOutbox atomically commits a verification transition
// together with its pending ledger mutation. The guard requires the row to
// still be in sent_to_accounts at the prior version; the losing verifier's
// update matches no rows and no outbox entry is written.
func (r *CollectionRepository) SaveTransitionWithOutbox(ctx context.Context, c *collection.Collection, entry *shared.OutboxEntry) error {
	var model models.CollectionModel
	model.FromDomain(c)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&models.CollectionModel{}).
			Where("id = ? AND version = ? AND status = ?",
				c.ID, c.Version-1, collection.StatusSentToAccounts.String()).
			Updates(collectionUpdateColumns(&model))
		if result.Error != nil {
			return fmt.Errorf("failed to update collection: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		var outboxModel models.OutboxEntryModel
		outboxModel.FromDomain(entry)
		if err := tx.Create(&outboxModel).Error; err != nil {
			return fmt.Errorf("failed to create outbox entry: %w", err)
		}
		return nil
	})
}

// CountByStatus counts collections in the given status
func (r *CollectionRepository) CountByStatus(ctx context.Context, status collection.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CollectionModel{}).
		Where("status = ?", status.String()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count collections: %w", err)
	}
	return count, nil
}

func (r *CollectionRepository) applyFilter(query *gorm.DB, filter collection.Filter) *gorm.DB {
	query = query.Model(&models.CollectionModel{})

	if filter.InstitutionID != nil {
		query = query.Where("institution_id = ?", *filter.InstitutionID)
	}
	if filter.InspectorID != nil {
		query = query.Where("inspector_id = ?", *filter.InspectorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.DistrictName != nil {
		query = query.Where("district_name = ?", *filter.DistrictName)
	}
	if filter.FromDate != nil {
		query = query.Where("collection_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("collection_date <= ?", *filter.ToDate)
	}

	// Sorting goes through the whitelist; anything else falls back to created_at
	sortField := ValidateSortField(filter.OrderBy, CollectionSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	return query
}

// collectionUpdateColumns lists the columns a conditional update writes.
// A map keeps zero values (cleared challan, empty remarks) in the statement,
// which Updates with a struct would silently drop.
func collectionUpdateColumns(m *models.CollectionModel) map[string]interface{} {
	return map[string]interface{}{
		"status":           m.Status,
		"version":          m.Version,
		"credited_arrears": m.CreditedArrears,
		"credited_current": m.CreditedCurrent,
		"challan_no":       m.ChallanNo,
		"challan_date":     m.ChallanDate,
		"remarks":          m.Remarks,
		"rejection_reason": m.RejectionReason,
		"verifier_id":      m.VerifierID,
		"verified_at":      m.VerifiedAt,
		"updated_at":       m.UpdatedAt,
	}
}

func toDomainCollections(modelList []models.CollectionModel) []collection.Collection {
	out := make([]collection.Collection, 0, len(modelList))
	for i := range modelList {
		out = append(out, *modelList[i].ToDomain())
	}
	return out
}

var _ collection.Repository = (*CollectionRepository)(nil)
