package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/collection"
)

// CollectionResponse represents a collection record in API responses
type CollectionResponse struct {
	ID            uuid.UUID `json:"id"`
	InstitutionID uuid.UUID `json:"institution_id"`
	GazetteNo     string    `json:"gazette_no"`
	DistrictName  string    `json:"district_name"`
	InspectorID   uuid.UUID `json:"inspector_id"`

	Status  string `json:"status"`
	Version int    `json:"version"`

	ArrearAmount  decimal.Decimal `json:"arrear_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`

	CollectionDate time.Time `json:"collection_date"`

	ChallanNo       string     `json:"challan_no,omitempty"`
	ChallanDate     *time.Time `json:"challan_date,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	VerifierID *uuid.UUID `json:"verifier_id,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCollectionResponse(c *collection.Collection) CollectionResponse {
	return CollectionResponse{
		ID:              c.ID,
		InstitutionID:   c.InstitutionID,
		GazetteNo:       c.GazetteNo,
		DistrictName:    c.DistrictName,
		InspectorID:     c.InspectorID,
		Status:          c.Status.String(),
		Version:         c.Version,
		ArrearAmount:    c.ArrearAmount,
		CurrentAmount:   c.CurrentAmount,
		TotalAmount:     c.TotalAmount,
		CollectionDate:  c.CollectionDate,
		ChallanNo:       c.ChallanNo,
		ChallanDate:     c.ChallanDate,
		Remarks:         c.Remarks,
		RejectionReason: c.RejectionReason,
		VerifierID:      c.VerifierID,
		VerifiedAt:      c.VerifiedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCollectionResponses(items []collection.Collection) []CollectionResponse {
	out := make([]CollectionResponse, 0, len(items))
	for i := range items {
		out = append(out, toCollectionResponse(&items[i]))
	}
	return out
}
