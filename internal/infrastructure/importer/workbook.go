package xlsximport

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// DCBRow is one parsed row of a district DCB sheet. Amount fields stay as raw
// strings here; the parser converts them on demand so a blank cell can default
// to zero without losing the original text for error reporting.
type DCBRow struct {
	Row             int
	GazetteNo       string
	InstitutionName string
	Mandal          string
	Village         string
	ExtentDry       decimal.Decimal
	ExtentWet       decimal.Decimal
	DemandArrears   decimal.Decimal
	DemandCurrent   decimal.Decimal
}

// sheet column layout of the board's annual DCB workbook
const (
	colGazetteNo = iota
	colInstitutionName
	colMandal
	colVillage
	colExtentDry
	colExtentWet
	colDemandArrears
	colDemandCurrent
	minColumns = colDemandCurrent + 1
)

// WorkbookParser reads district DCB sheets out of an xlsx workbook
type WorkbookParser struct {
	file       *excelize.File
	sheetName  string
	headerRows int
	maxRows    int
}

// WorkbookParserConfig configures sheet selection and bounds
type WorkbookParserConfig struct {
	// SheetName is the sheet holding the DCB rows
	SheetName string
	// HeaderRows is the number of leading rows to skip
	HeaderRows int
	// MaxRows caps the number of data rows accepted
	MaxRows int
}

// NewWorkbookParser opens a workbook from a reader
func NewWorkbookParser(r io.Reader, cfg WorkbookParserConfig) (*WorkbookParser, error) {
	if cfg.SheetName == "" {
		cfg.SheetName = "DCB"
	}
	if cfg.HeaderRows < 0 {
		cfg.HeaderRows = 0
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}

	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	return &WorkbookParser{
		file:       file,
		sheetName:  cfg.SheetName,
		headerRows: cfg.HeaderRows,
		maxRows:    cfg.MaxRows,
	}, nil
}

// Close releases the workbook
func (p *WorkbookParser) Close() error {
	return p.file.Close()
}

// Rows parses the configured sheet. Malformed rows are collected as RowErrors
// alongside the good rows; completely blank rows are skipped silently.
func (p *WorkbookParser) Rows() ([]DCBRow, []RowError, error) {
	rows, err := p.file.GetRows(p.sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingSheet, p.sheetName)
	}
	if len(rows) <= p.headerRows {
		return nil, nil, ErrNoDataRows
	}
	if len(rows)-p.headerRows > p.maxRows {
		return nil, nil, fmt.Errorf("%w: %d rows, cap %d", ErrTooManyRows, len(rows)-p.headerRows, p.maxRows)
	}

	var (
		parsed    []DCBRow
		rowErrors []RowError
		seen      = make(map[string]int)
	)

	for i := p.headerRows; i < len(rows); i++ {
		rowNum := i + 1
		cells := rows[i]
		if isBlankRow(cells) {
			continue
		}

		row, errs := p.parseRow(rowNum, cells)
		if len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
			continue
		}

		if firstRow, dup := seen[row.GazetteNo]; dup {
			rowErrors = append(rowErrors, NewRowError(rowNum, "gazette_no", ErrCodeImportDuplicateInFile,
				fmt.Sprintf("gazette number %q already appears on row %d", row.GazetteNo, firstRow)))
			continue
		}
		seen[row.GazetteNo] = rowNum

		parsed = append(parsed, row)
	}

	return parsed, rowErrors, nil
}

func (p *WorkbookParser) parseRow(rowNum int, cells []string) (DCBRow, []RowError) {
	var errs []RowError

	row := DCBRow{
		Row:             rowNum,
		GazetteNo:       cellAt(cells, colGazetteNo),
		InstitutionName: cellAt(cells, colInstitutionName),
		Mandal:          cellAt(cells, colMandal),
		Village:         cellAt(cells, colVillage),
	}

	if row.GazetteNo == "" {
		errs = append(errs, NewRowError(rowNum, "gazette_no", ErrCodeImportRequiredField, "gazette number is required"))
	}
	if row.InstitutionName == "" {
		errs = append(errs, NewRowError(rowNum, "institution_name", ErrCodeImportRequiredField, "institution name is required"))
	}

	amounts := []struct {
		col   int
		name  string
		value *decimal.Decimal
	}{
		{colExtentDry, "extent_dry", &row.ExtentDry},
		{colExtentWet, "extent_wet", &row.ExtentWet},
		{colDemandArrears, "demand_arrears", &row.DemandArrears},
		{colDemandCurrent, "demand_current", &row.DemandCurrent},
	}
	for _, a := range amounts {
		value, err := parseAmount(cellAt(cells, a.col))
		if err != nil {
			errs = append(errs, RowError{
				Row:     rowNum,
				Column:  a.name,
				Code:    ErrCodeImportInvalidAmount,
				Message: err.Error(),
				Value:   cellAt(cells, a.col),
			})
			continue
		}
		*a.value = value
	}

	return row, errs
}

// parseAmount converts a cell to a non-negative decimal. Blank cells mean
// zero; the workbooks in circulation use commas as thousands separators.
func parseAmount(cell string) (decimal.Decimal, error) {
	cell = strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	if cell == "" || cell == "-" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a valid amount")
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}
	return value, nil
}

func cellAt(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
