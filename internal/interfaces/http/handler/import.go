package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wakfboard/backend/internal/application/seeding"
	"github.com/wakfboard/backend/internal/interfaces/http/dto"
)

// maxWorkbookSize caps uploaded workbook size at 20 MiB
const maxWorkbookSize = 20 << 20

// ImportHandler handles DCB workbook upload endpoints
type ImportHandler struct {
	BaseHandler
	imports *seeding.DCBImportService
	opts    seeding.ImportOptions
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(imports *seeding.DCBImportService, opts seeding.ImportOptions) *ImportHandler {
	return &ImportHandler{imports: imports, opts: opts}
}

// RegisterRoutes registers import routes
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/imports/districts/:district", h.ImportDistrict)
}

// ImportDistrict seeds a district's ledger partition from an uploaded DCB
// workbook. The workbook is uploaded as multipart form field "file".
func (h *ImportHandler) ImportDistrict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Workbook file is required")
		return
	}
	if fileHeader.Size > maxWorkbookSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation, "Workbook exceeds the maximum upload size")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.InternalError(c, "Failed to read uploaded workbook")
		return
	}
	defer file.Close()

	result, err := h.imports.ImportDistrictWorkbook(c.Request.Context(), c.Param("district"), file, h.opts)
	if err != nil {
		switch {
		case errors.Is(err, seeding.ErrUnknownDistrict):
			h.NotFound(c, "District is not registered")
		case errors.Is(err, seeding.ErrStrictModeAbort):
			c.JSON(http.StatusUnprocessableEntity, dto.Response{
				Success: false,
				Data:    result,
				Error: &dto.ErrorInfo{
					Code:      dto.ErrCodeValidation,
					Message:   "Workbook contains invalid rows",
					RequestID: getRequestID(c),
				},
			})
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.Success(c, result)
}
