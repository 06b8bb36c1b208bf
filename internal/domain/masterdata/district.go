package masterdata

import (
	"context"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/shared"
)

// District represents an administrative district. Each active district owns
// one dedicated ledger partition derived from its name.
type District struct {
	shared.BaseEntity
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// NewDistrict creates a new district
func NewDistrict(name string) (*District, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_DISTRICT_NAME", "District name cannot be empty")
	}
	return &District{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Active:     true,
	}, nil
}

// DistrictRepository defines read access to district master data
type DistrictRepository interface {
	// FindByID finds a district by ID
	FindByID(ctx context.Context, id uuid.UUID) (*District, error)

	// FindByName finds a district by its display name (case-insensitive)
	FindByName(ctx context.Context, name string) (*District, error)

	// FindAllActive returns all active districts
	FindAllActive(ctx context.Context) ([]District, error)
}
