package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/masterdata"
	"github.com/wakfboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// DistrictRepository implements masterdata.DistrictRepository using GORM
type DistrictRepository struct {
	db *gorm.DB
}

// NewDistrictRepository creates a new district repository
func NewDistrictRepository(db *gorm.DB) *DistrictRepository {
	return &DistrictRepository{db: db}
}

// FindByID finds a district by ID. Returns (nil, nil) when no record exists.
func (r *DistrictRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.District, error) {
	var model models.DistrictModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find district: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByName finds a district by its display name, case-insensitively.
// Returns (nil, nil) when no record exists.
func (r *DistrictRepository) FindByName(ctx context.Context, name string) (*masterdata.District, error) {
	var model models.DistrictModel
	err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find district by name: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAllActive returns all active districts ordered by name
func (r *DistrictRepository) FindAllActive(ctx context.Context) ([]masterdata.District, error) {
	var modelList []models.DistrictModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&modelList).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active districts: %w", err)
	}

	districts := make([]masterdata.District, 0, len(modelList))
	for i := range modelList {
		districts = append(districts, *modelList[i].ToDomain())
	}
	return districts, nil
}

// Save creates or updates a district
func (r *DistrictRepository) Save(ctx context.Context, d *masterdata.District) error {
	var model models.DistrictModel
	model.FromDomain(d)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save district: %w", err)
	}
	return nil
}

var _ masterdata.DistrictRepository = (*DistrictRepository)(nil)
