package seeding

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/masterdata"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/xuri/excelize/v2"
)

type MockDistrictRepository struct {
	mock.Mock
}

func (m *MockDistrictRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.District, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*masterdata.District), args.Error(1)
}

func (m *MockDistrictRepository) FindByName(ctx context.Context, name string) (*masterdata.District, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*masterdata.District), args.Error(1)
}

func (m *MockDistrictRepository) FindAllActive(ctx context.Context) ([]masterdata.District, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]masterdata.District), args.Error(1)
}

type MockInstitutionStore struct {
	mock.Mock
}

func (m *MockInstitutionStore) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Institution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*masterdata.Institution), args.Error(1)
}

func (m *MockInstitutionStore) FindByGazetteNo(ctx context.Context, gazetteNo string) (*masterdata.Institution, error) {
	args := m.Called(ctx, gazetteNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*masterdata.Institution), args.Error(1)
}

func (m *MockInstitutionStore) FindByDistrict(ctx context.Context, districtID uuid.UUID, filter shared.Filter) ([]masterdata.Institution, error) {
	args := m.Called(ctx, districtID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]masterdata.Institution), args.Error(1)
}

func (m *MockInstitutionStore) ExistsByGazetteNo(ctx context.Context, gazetteNo string) (bool, error) {
	args := m.Called(ctx, gazetteNo)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstitutionStore) Save(ctx context.Context, inst *masterdata.Institution) error {
	args := m.Called(ctx, inst)
	return args.Error(0)
}

type MockPartitionWriter struct {
	mock.Mock
}

func (m *MockPartitionWriter) SeedEntry(ctx context.Context, partition ledger.PartitionID, entry *ledger.Entry) error {
	args := m.Called(ctx, partition, entry)
	return args.Error(0)
}

func (m *MockPartitionWriter) UpsertEntry(ctx context.Context, partition ledger.PartitionID, entry *ledger.Entry) error {
	args := m.Called(ctx, partition, entry)
	return args.Error(0)
}

func (m *MockPartitionWriter) ApplyProvisionalCredit(ctx context.Context, partition ledger.PartitionID, gazetteNo string, arrears, current decimal.Decimal) error {
	args := m.Called(ctx, partition, gazetteNo, arrears, current)
	return args.Error(0)
}

func testWorkbook(t *testing.T, rows [][]interface{}) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "DCB"))
	header := []interface{}{"Gazette No", "Institution", "Mandal", "Village",
		"Extent Dry", "Extent Wet", "Demand Arrears", "Demand Current"}
	require.NoError(t, f.SetSheetRow("DCB", "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("DCB", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func newImportFixture(t *testing.T) (*DCBImportService, *MockDistrictRepository, *MockInstitutionStore, *MockPartitionWriter) {
	t.Helper()
	districtRepo := new(MockDistrictRepository)
	institutions := new(MockInstitutionStore)
	writer := new(MockPartitionWriter)

	router, err := ledger.NewRouter([]string{"Guntur", "Krishna"})
	require.NoError(t, err)

	svc := NewDCBImportService(DCBImportServiceConfig{
		DistrictRepo:      districtRepo,
		InstitutionRepo:   institutions,
		InstitutionWriter: institutions,
		LedgerRepo:        writer,
		Router:            router,
	})
	return svc, districtRepo, institutions, writer
}

func guntur() *masterdata.District {
	d, _ := masterdata.NewDistrict("Guntur")
	return d
}

func TestDCBImportService_SeedsRowsAndRegistersInstitutions(t *testing.T) {
	svc, districtRepo, institutions, writer := newImportFixture(t)
	ctx := context.Background()

	workbook := testWorkbook(t, [][]interface{}{
		{"AP-GZ-1001", "Jama Masjid", "Tenali", "Kolakaluru", "12.5", "3.5", "5,000.00", "3000"},
		{"AP-GZ-1002", "Dargah Trust", "Mangalagiri", "", "", "", "", "1200"},
	})

	districtRepo.On("FindByName", ctx, "Guntur").Return(guntur(), nil)
	institutions.On("ExistsByGazetteNo", ctx, "AP-GZ-1001").Return(false, nil)
	institutions.On("ExistsByGazetteNo", ctx, "AP-GZ-1002").Return(true, nil)
	institutions.On("Save", ctx, mock.MatchedBy(func(inst *masterdata.Institution) bool {
		return inst.GazetteNo == "AP-GZ-1001" && inst.Mandal == "Tenali"
	})).Return(nil)
	writer.On("UpsertEntry", ctx, ledger.PartitionID("dcb_guntur"), mock.MatchedBy(func(e *ledger.Entry) bool {
		if e.GazetteNo != "AP-GZ-1001" {
			return true
		}
		return e.DemandArrears.Equal(decimal.NewFromInt(5000)) &&
			e.DemandTotal.Equal(decimal.NewFromInt(8000)) &&
			e.BalanceTotal.Equal(decimal.NewFromInt(8000)) &&
			e.ExtentTotal.Equal(decimal.NewFromInt(16))
	})).Return(nil)

	result, err := svc.ImportDistrictWorkbook(ctx, "Guntur", workbook, ImportOptions{HeaderRows: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.SeededEntries)
	assert.Equal(t, 1, result.NewInstitutions)
	assert.Zero(t, result.ErrorRows)
	institutions.AssertNumberOfCalls(t, "Save", 1)
	writer.AssertNumberOfCalls(t, "UpsertEntry", 2)
}

func TestDCBImportService_ReportsBadRowsAndSeedsTheRest(t *testing.T) {
	svc, districtRepo, institutions, writer := newImportFixture(t)
	ctx := context.Background()

	workbook := testWorkbook(t, [][]interface{}{
		{"", "Nameless Gazette", "", "", "", "", "100", "100"},
		{"AP-GZ-1003", "Ashurkhana", "", "", "", "", "abc", "100"},
		{"AP-GZ-1004", "Kanduri Trust", "", "", "", "", "700", "300"},
	})

	districtRepo.On("FindByName", ctx, "Guntur").Return(guntur(), nil)
	institutions.On("ExistsByGazetteNo", ctx, "AP-GZ-1004").Return(true, nil)
	writer.On("UpsertEntry", ctx, ledger.PartitionID("dcb_guntur"), mock.Anything).Return(nil)

	result, err := svc.ImportDistrictWorkbook(ctx, "Guntur", workbook, ImportOptions{HeaderRows: 1})

	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.SeededEntries)
	assert.Equal(t, 2, result.ErrorRows)
	writer.AssertNumberOfCalls(t, "UpsertEntry", 1)
}

func TestDCBImportService_StrictModeAborts(t *testing.T) {
	svc, districtRepo, _, writer := newImportFixture(t)
	ctx := context.Background()

	workbook := testWorkbook(t, [][]interface{}{
		{"AP-GZ-1003", "Ashurkhana", "", "", "", "", "abc", "100"},
		{"AP-GZ-1004", "Kanduri Trust", "", "", "", "", "700", "300"},
	})

	districtRepo.On("FindByName", ctx, "Guntur").Return(guntur(), nil)

	result, err := svc.ImportDistrictWorkbook(ctx, "Guntur", workbook, ImportOptions{HeaderRows: 1, StrictMode: true})

	require.ErrorIs(t, err, ErrStrictModeAbort)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ErrorRows)
	assert.Zero(t, result.SeededEntries)
	writer.AssertNotCalled(t, "UpsertEntry", mock.Anything, mock.Anything, mock.Anything)
}

func TestDCBImportService_DuplicateGazetteInFile(t *testing.T) {
	svc, districtRepo, institutions, writer := newImportFixture(t)
	ctx := context.Background()

	workbook := testWorkbook(t, [][]interface{}{
		{"AP-GZ-1005", "Masjid-e-Ala", "", "", "", "", "100", "100"},
		{"AP-GZ-1005", "Masjid-e-Ala", "", "", "", "", "100", "100"},
	})

	districtRepo.On("FindByName", ctx, "Guntur").Return(guntur(), nil)
	institutions.On("ExistsByGazetteNo", ctx, "AP-GZ-1005").Return(true, nil)
	writer.On("UpsertEntry", ctx, ledger.PartitionID("dcb_guntur"), mock.Anything).Return(nil)

	result, err := svc.ImportDistrictWorkbook(ctx, "Guntur", workbook, ImportOptions{HeaderRows: 1})

	require.NoError(t, err)
	assert.Equal(t, 1, result.SeededEntries)
	assert.Equal(t, 1, result.ErrorRows)
	writer.AssertNumberOfCalls(t, "UpsertEntry", 1)
}

func TestDCBImportService_UnknownDistrict(t *testing.T) {
	svc, districtRepo, _, _ := newImportFixture(t)
	ctx := context.Background()

	districtRepo.On("FindByName", ctx, "Anantapur").Return(nil, nil)

	workbook := testWorkbook(t, [][]interface{}{
		{"AP-GZ-1001", "Jama Masjid", "", "", "", "", "100", "100"},
	})

	_, err := svc.ImportDistrictWorkbook(ctx, "Anantapur", workbook, ImportOptions{HeaderRows: 1})

	assert.ErrorIs(t, err, ErrUnknownDistrict)
}
