package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcollection "github.com/wakfboard/backend/internal/application/collection"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/interfaces/http/dto"
)

// VerificationHandler handles the accounts section's verification endpoints
type VerificationHandler struct {
	BaseHandler
	verifications *appcollection.VerificationService
}

// NewVerificationHandler creates a new VerificationHandler
func NewVerificationHandler(verifications *appcollection.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// RegisterRoutes registers verification routes
func (h *VerificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/verification")
	{
		group.GET("/pending", h.ListPending)
		group.POST("/:id/approve", h.Approve)
		group.POST("/:id/reject", h.Reject)
	}
}

// ListPending returns collections awaiting verification
func (h *VerificationHandler) ListPending(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, err := h.verifications.ListAwaitingVerification(c.Request.Context(), collection.Filter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCollectionResponses(items))
}

// ApproveCollectionRequest represents the approve request body
type ApproveCollectionRequest struct {
	ChallanNo   string     `json:"challan_no" binding:"required"`
	ChallanDate *time.Time `json:"challan_date"`
	Remarks     string     `json:"remarks"`
	// ExpectedVersion guards against acting on a stale read of the record
	ExpectedVersion int `json:"expected_version"`
}

// Approve verifies a collection and finalizes its provisional ledger credit
func (h *VerificationHandler) Approve(c *gin.Context) {
	verifierID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Verifier identity is required")
		return
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}
	var req ApproveCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	approved, err := h.verifications.Approve(c.Request.Context(), appcollection.ApproveRequest{
		CollectionID:    uuid.MustParse(idReq.ID),
		VerifierID:      verifierID,
		ChallanNo:       req.ChallanNo,
		ChallanDate:     req.ChallanDate,
		Remarks:         req.Remarks,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}

	h.Success(c, toCollectionResponse(approved))
}

// RejectCollectionRequest represents the reject request body
type RejectCollectionRequest struct {
	Reason          string `json:"reason" binding:"required"`
	ExpectedVersion int    `json:"expected_version"`
}

// Reject declines a collection; the provisional ledger credit is rolled back
// asynchronously.
func (h *VerificationHandler) Reject(c *gin.Context) {
	verifierID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Verifier identity is required")
		return
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}
	var req RejectCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	rejected, err := h.verifications.Reject(c.Request.Context(), appcollection.RejectRequest{
		CollectionID:    uuid.MustParse(idReq.ID),
		VerifierID:      verifierID,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}

	h.Success(c, toCollectionResponse(rejected))
}

func (h *VerificationHandler) handleVerificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appcollection.ErrCollectionNotFound):
		h.NotFound(c, "Collection not found")
	case errors.Is(err, appcollection.ErrVersionMismatch):
		h.Conflict(c, dto.ErrCodeConcurrencyConflict, "Collection was modified, reload and retry")
	case errors.Is(err, shared.ErrConcurrencyConflict):
		h.Conflict(c, dto.ErrCodeConcurrencyConflict, "Another verifier acted on this collection first")
	default:
		h.HandleError(c, err)
	}
}
