package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/masterdata"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// InstitutionRepository implements masterdata.InstitutionRepository using GORM
type InstitutionRepository struct {
	db *gorm.DB
}

// NewInstitutionRepository creates a new institution repository
func NewInstitutionRepository(db *gorm.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// FindByID finds an institution by ID. Returns (nil, nil) when no record exists.
func (r *InstitutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Institution, error) {
	var model models.InstitutionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find institution: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByGazetteNo finds an institution by its gazette number.
// Returns (nil, nil) when no record exists.
func (r *InstitutionRepository) FindByGazetteNo(ctx context.Context, gazetteNo string) (*masterdata.Institution, error) {
	var model models.InstitutionModel
	err := r.db.WithContext(ctx).Where("gazette_no = ?", gazetteNo).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find institution by gazette number: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByDistrict finds all institutions in a district
func (r *InstitutionRepository) FindByDistrict(ctx context.Context, districtID uuid.UUID, filter shared.Filter) ([]masterdata.Institution, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InstitutionModel{}).
		Where("district_id = ?", districtID)

	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR gazette_no ILIKE ?", search, search)
	}

	query = query.Order("name ASC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var modelList []models.InstitutionModel
	if err := query.Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to find institutions by district: %w", err)
	}

	institutions := make([]masterdata.Institution, 0, len(modelList))
	for i := range modelList {
		institutions = append(institutions, *modelList[i].ToDomain())
	}
	return institutions, nil
}

// ExistsByGazetteNo checks whether a gazette number is already registered
func (r *InstitutionRepository) ExistsByGazetteNo(ctx context.Context, gazetteNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InstitutionModel{}).
		Where("gazette_no = ?", gazetteNo).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check gazette number: %w", err)
	}
	return count > 0, nil
}

// Save creates or updates an institution
func (r *InstitutionRepository) Save(ctx context.Context, inst *masterdata.Institution) error {
	var model models.InstitutionModel
	model.FromDomain(inst)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save institution: %w", err)
	}
	return nil
}

var _ masterdata.InstitutionRepository = (*InstitutionRepository)(nil)
