package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository implements shared.OutboxRepository using GORM
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Save persists one or more outbox entries
func (r *OutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	modelList := make([]models.OutboxEntryModel, 0, len(entries))
	for _, entry := range entries {
		var model models.OutboxEntryModel
		model.FromDomain(entry)
		modelList = append(modelList, model)
	}
	if err := r.db.WithContext(ctx).Create(&modelList).Error; err != nil {
		return fmt.Errorf("failed to save outbox entries: %w", err)
	}
	return nil
}

// FindPending retrieves pending entries up to the specified limit,
// oldest first.
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	var modelList []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(shared.OutboxStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending outbox entries: %w", err)
	}
	return toDomainEntries(modelList), nil
}

// FindRetryable retrieves failed entries whose next retry time has passed
func (r *OutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var modelList []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", string(shared.OutboxStatusFailed), before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find retryable outbox entries: %w", err)
	}
	return toDomainEntries(modelList), nil
}

// FindDead retrieves dead letter entries with pagination
func (r *OutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ?", string(shared.OutboxStatusDead)).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dead letter entries: %w", err)
	}

	var modelList []models.OutboxEntryModel
	err = r.db.WithContext(ctx).
		Where("status = ?", string(shared.OutboxStatusDead)).
		Order("updated_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&modelList).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find dead letter entries: %w", err)
	}
	return toDomainEntries(modelList), total, nil
}

// FindByID retrieves a single outbox entry by ID.
// Returns (nil, nil) when no record exists.
func (r *OutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var model models.OutboxEntryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find outbox entry: %w", err)
	}
	return model.ToDomain(), nil
}

// MarkProcessing atomically claims entries for processing and returns the ones
// actually claimed. Rows are locked with FOR UPDATE SKIP LOCKED so concurrent
// workers never claim the same entry.
func (r *OutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var modelList []models.OutboxEntryModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids,
				[]string{string(shared.OutboxStatusPending), string(shared.OutboxStatusFailed)}).
			Find(&modelList).Error
		if err != nil {
			return fmt.Errorf("failed to lock outbox entries: %w", err)
		}
		if len(modelList) == 0 {
			return nil
		}

		lockedIDs := make([]uuid.UUID, 0, len(modelList))
		for i := range modelList {
			lockedIDs = append(lockedIDs, modelList[i].ID)
		}

		now := time.Now()
		err = tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", lockedIDs).
			Updates(map[string]interface{}{
				"status":     string(shared.OutboxStatusProcessing),
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark outbox entries processing: %w", err)
		}

		for i := range modelList {
			entry := modelList[i].ToDomain()
			entry.Status = shared.OutboxStatusProcessing
			entry.UpdatedAt = now
			claimed = append(claimed, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReclaimStale moves entries stuck in PROCESSING back to PENDING. A worker
// that crashes between claiming a batch and recording the outcome leaves its
// claims in PROCESSING, where neither FindPending nor FindRetryable sees them
// again; anything still PROCESSING past the cutoff belongs to a dead worker.
func (r *OutboxRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ? AND updated_at < ?", string(shared.OutboxStatusProcessing), olderThan).
		Updates(map[string]interface{}{
			"status":     string(shared.OutboxStatusPending),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stale outbox entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Update updates an existing outbox entry
func (r *OutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	var model models.OutboxEntryModel
	model.FromDomain(entry)
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":        model.Status,
			"retry_count":   model.RetryCount,
			"last_error":    model.LastError,
			"next_retry_at": model.NextRetryAt,
			"processed_at":  model.ProcessedAt,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update outbox entry: %w", result.Error)
	}
	return nil
}

// DeleteOlderThan deletes applied entries older than the specified time
func (r *OutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", string(shared.OutboxStatusApplied), before).
		Delete(&models.OutboxEntryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old outbox entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus returns count of entries for each status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox entries: %w", err)
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[shared.OutboxStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func toDomainEntries(modelList []models.OutboxEntryModel) []*shared.OutboxEntry {
	out := make([]*shared.OutboxEntry, 0, len(modelList))
	for i := range modelList {
		out = append(out, modelList[i].ToDomain())
	}
	return out
}

var _ shared.OutboxRepository = (*OutboxRepository)(nil)
