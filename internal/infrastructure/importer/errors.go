package xlsximport

import (
	"errors"
	"fmt"
)

// Import error codes
const (
	ErrCodeImportInvalidFile     = "ERR_IMPORT_INVALID_FILE"
	ErrCodeImportMissingSheet    = "ERR_IMPORT_MISSING_SHEET"
	ErrCodeImportEmptySheet      = "ERR_IMPORT_EMPTY_SHEET"
	ErrCodeImportTooManyRows     = "ERR_IMPORT_TOO_MANY_ROWS"
	ErrCodeImportRequiredField   = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeImportInvalidAmount   = "ERR_IMPORT_INVALID_AMOUNT"
	ErrCodeImportDuplicateInFile = "ERR_IMPORT_DUPLICATE_IN_FILE"
	ErrCodeImportUnknownDistrict = "ERR_IMPORT_UNKNOWN_DISTRICT"
)

// Common import errors
var (
	// ErrMissingSheet is returned when the workbook has no sheet with the configured name
	ErrMissingSheet = errors.New("workbook missing DCB sheet")

	// ErrNoDataRows is returned when the sheet has no rows below the header
	ErrNoDataRows = errors.New("sheet contains no data rows")

	// ErrTooManyRows is returned when the sheet exceeds the configured row cap
	ErrTooManyRows = errors.New("sheet exceeds maximum allowed rows")
)

// RowError represents an error in a specific row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
	}
}
