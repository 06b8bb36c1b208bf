package masterdata

import (
	"context"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// Institution represents a registered institution. The gazette number is
// globally unique and serves as the join key into the sharded ledger, since
// partitions carry no foreign key back to the institution ID.
type Institution struct {
	shared.BaseEntity
	DistrictID   uuid.UUID `json:"district_id"`
	DistrictName string    `json:"district_name"`
	Name         string    `json:"name"`
	GazetteNo    string    `json:"gazette_no"`
	Mandal       string    `json:"mandal"`
	Village      string    `json:"village"`
}

// NewInstitution creates a new institution
func NewInstitution(districtID uuid.UUID, districtName, name, gazetteNo string) (*Institution, error) {
	if districtID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DISTRICT", "District ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INSTITUTION_NAME", "Institution name cannot be empty")
	}
	if gazetteNo == "" {
		return nil, shared.NewDomainError("INVALID_GAZETTE_NO", "Gazette number cannot be empty")
	}
	return &Institution{
		BaseEntity:   shared.NewBaseEntity(),
		DistrictID:   districtID,
		DistrictName: districtName,
		Name:         name,
		GazetteNo:    gazetteNo,
	}, nil
}

// InstitutionRepository defines read access to institution master data
type InstitutionRepository interface {
	// FindByID finds an institution by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Institution, error)

	// FindByGazetteNo finds an institution by its gazette number
	FindByGazetteNo(ctx context.Context, gazetteNo string) (*Institution, error)

	// FindByDistrict finds all institutions in a district
	FindByDistrict(ctx context.Context, districtID uuid.UUID, filter shared.Filter) ([]Institution, error)

	// ExistsByGazetteNo checks whether a gazette number is already registered
	ExistsByGazetteNo(ctx context.Context, gazetteNo string) (bool, error)
}

// InstitutionWriter defines write access to institution master data,
// used by the annual workbook import.
type InstitutionWriter interface {
	// Save creates or updates an institution
	Save(ctx context.Context, inst *Institution) error
}
