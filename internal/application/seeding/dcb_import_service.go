package seeding

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/masterdata"
	"github.com/wakfboard/backend/internal/domain/shared"
	xlsximport "github.com/wakfboard/backend/internal/infrastructure/importer"
	"go.uber.org/zap"
)

// Service errors
var (
	ErrUnknownDistrict = errors.New("district is not registered")
	ErrStrictModeAbort = errors.New("import aborted: workbook contains invalid rows")
)

// ImportOptions controls parsing and failure behavior of a workbook import
type ImportOptions struct {
	// SheetName is the sheet holding the DCB rows; empty means "DCB"
	SheetName string
	// HeaderRows is the number of leading rows to skip
	HeaderRows int
	// MaxRows caps the number of data rows accepted
	MaxRows int
	// StrictMode aborts the whole import when any row fails to parse,
	// instead of seeding the good rows and reporting the bad ones
	StrictMode bool
}

// ImportResult summarizes a district workbook import
type ImportResult struct {
	District        string                `json:"district"`
	Partition       string                `json:"partition"`
	TotalRows       int                   `json:"total_rows"`
	SeededEntries   int                   `json:"seeded_entries"`
	NewInstitutions int                   `json:"new_institutions"`
	ErrorRows       int                   `json:"error_rows"`
	Errors          []xlsximport.RowError `json:"errors,omitempty"`
}

// DCBImportService seeds a district's ledger partition and the institution
// register from the board's annual DCB workbook. Rows are upserted by gazette
// number, so re-running an import refreshes demand figures without
// duplicating entries.
type DCBImportService struct {
	districtRepo    masterdata.DistrictRepository
	institutionRepo masterdata.InstitutionRepository
	institutions    masterdata.InstitutionWriter
	ledgerRepo      ledger.PartitionWriter
	router          *ledger.Router
	logger          *zap.Logger
}

// DCBImportServiceConfig holds dependencies for DCBImportService
type DCBImportServiceConfig struct {
	DistrictRepo      masterdata.DistrictRepository
	InstitutionRepo   masterdata.InstitutionRepository
	InstitutionWriter masterdata.InstitutionWriter
	LedgerRepo        ledger.PartitionWriter
	Router            *ledger.Router
	Logger            *zap.Logger
}

// NewDCBImportService creates a new DCBImportService
func NewDCBImportService(cfg DCBImportServiceConfig) *DCBImportService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DCBImportService{
		districtRepo:    cfg.DistrictRepo,
		institutionRepo: cfg.InstitutionRepo,
		institutions:    cfg.InstitutionWriter,
		ledgerRepo:      cfg.LedgerRepo,
		router:          cfg.Router,
		logger:          logger,
	}
}

// ImportDistrictWorkbook parses the workbook and seeds the district's ledger
// partition. Institutions not yet in the register are created; existing ones
// are left untouched. Each good row is upserted into the partition keyed by
// gazette number.
func (s *DCBImportService) ImportDistrictWorkbook(ctx context.Context, districtName string, workbook io.Reader, opts ImportOptions) (*ImportResult, error) {
	district, err := s.districtRepo.FindByName(ctx, districtName)
	if err != nil {
		return nil, fmt.Errorf("failed to load district: %w", err)
	}
	if district == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistrict, districtName)
	}

	partition, err := s.router.Resolve(district.Name)
	if err != nil {
		return nil, err
	}

	parser, err := xlsximport.NewWorkbookParser(workbook, xlsximport.WorkbookParserConfig{
		SheetName:  opts.SheetName,
		HeaderRows: opts.HeaderRows,
		MaxRows:    opts.MaxRows,
	})
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	rows, rowErrors, err := parser.Rows()
	if err != nil {
		return nil, err
	}
	if opts.StrictMode && len(rowErrors) > 0 {
		return &ImportResult{
			District:  district.Name,
			Partition: partition.String(),
			TotalRows: len(rows) + len(rowErrors),
			ErrorRows: len(rowErrors),
			Errors:    rowErrors,
		}, ErrStrictModeAbort
	}

	result := &ImportResult{
		District:  district.Name,
		Partition: partition.String(),
		TotalRows: len(rows) + len(rowErrors),
		ErrorRows: len(rowErrors),
		Errors:    rowErrors,
	}

	for _, row := range rows {
		if err := s.seedRow(ctx, district, partition, row, result); err != nil {
			return result, err
		}
	}

	s.logger.Info("district workbook imported",
		zap.String("district", district.Name),
		zap.String("partition", partition.String()),
		zap.Int("seeded", result.SeededEntries),
		zap.Int("new_institutions", result.NewInstitutions),
		zap.Int("error_rows", result.ErrorRows))

	return result, nil
}

func (s *DCBImportService) seedRow(ctx context.Context, district *masterdata.District, partition ledger.PartitionID, row xlsximport.DCBRow, result *ImportResult) error {
	exists, err := s.institutionRepo.ExistsByGazetteNo(ctx, row.GazetteNo)
	if err != nil {
		return fmt.Errorf("row %d: failed to check institution: %w", row.Row, err)
	}
	if !exists {
		inst, err := masterdata.NewInstitution(district.ID, district.Name, row.InstitutionName, row.GazetteNo)
		if err != nil {
			return fmt.Errorf("row %d: %w", row.Row, err)
		}
		inst.Mandal = row.Mandal
		inst.Village = row.Village
		if err := s.institutions.Save(ctx, inst); err != nil {
			return fmt.Errorf("row %d: failed to register institution: %w", row.Row, err)
		}
		result.NewInstitutions++
	}

	entry, err := ledger.NewEntry(row.GazetteNo, row.InstitutionName)
	if err != nil {
		return fmt.Errorf("row %d: %w", row.Row, err)
	}
	entry.Mandal = row.Mandal
	entry.Village = row.Village
	if err := entry.SetExtent(row.ExtentDry, row.ExtentWet); err != nil {
		return fmt.Errorf("row %d: %w", row.Row, err)
	}
	if err := entry.SetDemand(row.DemandArrears, row.DemandCurrent); err != nil {
		return fmt.Errorf("row %d: %w", row.Row, err)
	}

	if err := s.ledgerRepo.UpsertEntry(ctx, partition, entry); err != nil {
		if errors.Is(err, shared.ErrPartitionUnavailable) {
			return fmt.Errorf("partition %s missing, run migrations first: %w", partition, err)
		}
		return fmt.Errorf("row %d: failed to seed ledger entry: %w", row.Row, err)
	}
	result.SeededEntries++
	return nil
}
