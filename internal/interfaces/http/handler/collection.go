package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appcollection "github.com/wakfboard/backend/internal/application/collection"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/interfaces/http/dto"
)

// CollectionHandler handles inspector-facing collection endpoints
type CollectionHandler struct {
	BaseHandler
	submissions *appcollection.SubmissionService
	collections collection.Repository
}

// NewCollectionHandler creates a new CollectionHandler
func NewCollectionHandler(submissions *appcollection.SubmissionService, collections collection.Repository) *CollectionHandler {
	return &CollectionHandler{
		submissions: submissions,
		collections: collections,
	}
}

// RegisterRoutes registers collection routes
func (h *CollectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/collections")
	{
		group.POST("", h.Create)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("/:id/submit", h.Submit)
	}
}

// CreateCollectionRequest represents the create collection request body
type CreateCollectionRequest struct {
	InstitutionID  string          `json:"institution_id" binding:"required,uuid"`
	ArrearAmount   decimal.Decimal `json:"arrear_amount"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	CollectionDate time.Time       `json:"collection_date" binding:"required"`
}

// Create records a new collection in pending status
func (h *CollectionHandler) Create(c *gin.Context) {
	inspectorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Inspector identity is required")
		return
	}

	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	institutionID, err := uuid.Parse(req.InstitutionID)
	if err != nil {
		h.BadRequest(c, "Invalid institution ID")
		return
	}

	created, err := h.submissions.CreateCollection(c.Request.Context(), appcollection.CreateCollectionRequest{
		InstitutionID:  institutionID,
		InspectorID:    inspectorID,
		ArrearAmount:   req.ArrearAmount,
		CurrentAmount:  req.CurrentAmount,
		CollectionDate: req.CollectionDate,
	})
	if err != nil {
		if errors.Is(err, appcollection.ErrInstitutionNotFound) {
			h.NotFound(c, "Institution not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Created(c, toCollectionResponse(created))
}

// Submit sends a pending collection to accounts for verification
func (h *CollectionHandler) Submit(c *gin.Context) {
	inspectorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Inspector identity is required")
		return
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}
	collectionID := uuid.MustParse(idReq.ID)

	submitted, err := h.submissions.SubmitToAccounts(c.Request.Context(), collectionID, inspectorID)
	if err != nil {
		switch {
		case errors.Is(err, appcollection.ErrCollectionNotFound):
			h.NotFound(c, "Collection not found")
		case errors.Is(err, appcollection.ErrNotOwner):
			h.Forbidden(c, "Collection belongs to another inspector")
		case errors.Is(err, shared.ErrConcurrencyConflict):
			h.Conflict(c, dto.ErrCodeConcurrencyConflict, "Collection was modified, reload and retry")
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.Success(c, toCollectionResponse(submitted))
}

// Get returns one collection record
func (h *CollectionHandler) Get(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	found, err := h.collections.FindByID(c.Request.Context(), uuid.MustParse(idReq.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if found == nil {
		h.NotFound(c, "Collection not found")
		return
	}

	h.Success(c, toCollectionResponse(found))
}

// ListCollectionsRequest represents the list query parameters
type ListCollectionsRequest struct {
	dto.ListRequest
	Status        string `form:"status"`
	District      string `form:"district"`
	InstitutionID string `form:"institution_id" binding:"omitempty,uuid"`
	Mine          bool   `form:"mine"`
}

// List returns collections with filtering
func (h *CollectionHandler) List(c *gin.Context) {
	req := ListCollectionsRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := collection.Filter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		},
	}
	if req.Status != "" {
		status := collection.Status(req.Status)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	if req.District != "" {
		filter.DistrictName = &req.District
	}
	if req.InstitutionID != "" {
		institutionID := uuid.MustParse(req.InstitutionID)
		filter.InstitutionID = &institutionID
	}
	if req.Mine {
		inspectorID, err := getUserID(c)
		if err != nil {
			h.Unauthorized(c, "Inspector identity is required")
			return
		}
		filter.InspectorID = &inspectorID
	}

	items, err := h.collections.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCollectionResponses(items))
}
