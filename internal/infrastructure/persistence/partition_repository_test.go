package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPartitionRepository(t *testing.T, districts ...string) (*PartitionRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	if len(districts) == 0 {
		districts = []string{"Guntur"}
	}
	router, err := ledger.NewRouter(districts)
	require.NoError(t, err)

	repo, err := NewPartitionRepository(PartitionRepositoryConfig{
		DB:     gormDB,
		Router: router,
	})
	require.NoError(t, err)

	return repo, mock, mockDB
}

func dcbRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"gazette_no", "institution_name", "demand_arrears", "demand_current", "demand_total",
		"collection_arrears", "collection_current", "collection_total",
		"balance_arrears", "balance_current", "balance_total", "is_provisional",
		"created_at", "updated_at",
	})
}

func TestPartitionRepository_ReadPartition(t *testing.T) {
	t.Run("applies verified-only filter and row cap", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		rows := dcbRows().AddRow(
			"AP-GZ-1001", "Jama Masjid", decimal.NewFromInt(5000), decimal.NewFromInt(3000), decimal.NewFromInt(8000),
			decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(1500),
			decimal.NewFromInt(4000), decimal.NewFromInt(2500), decimal.NewFromInt(6500), false,
			time.Now(), time.Now(),
		)

		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur" WHERE is_provisional = \$1 ORDER BY gazette_no ASC LIMIT .*`).
			WithArgs(false, 10).
			WillReturnRows(rows)

		entries, err := repo.ReadPartition(context.Background(), ledger.PartitionID("dcb_guntur"),
			ledger.ReadOptions{VerifiedOnly: true, RowCap: 10})

		assert.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "AP-GZ-1001", entries[0].GazetteNo)
		assert.True(t, entries[0].BalanceTotal.Equal(decimal.NewFromInt(6500)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing table to partition unavailable", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur"`).
			WillReturnError(&pq.Error{Code: "42P01", Message: `relation "dcb_guntur" does not exist`})

		_, err := repo.ReadPartition(context.Background(), ledger.PartitionID("dcb_guntur"), ledger.ReadOptions{})

		assert.ErrorIs(t, err, shared.ErrPartitionUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPartitionRepository_SumColumn(t *testing.T) {
	t.Run("pushes the aggregation down to the store", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(demand_total\), 0\) FROM "dcb_guntur"`).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("123456.78"))

		sum, err := repo.SumColumn(context.Background(), ledger.PartitionID("dcb_guntur"),
			ledger.ColumnDemandTotal, ledger.SumOptions{})

		assert.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("123456.78")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects columns outside the whitelist without touching the store", func(t *testing.T) {
		repo, _, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		_, err := repo.SumColumn(context.Background(), ledger.PartitionID("dcb_guntur"),
			ledger.Column("gazette_no; DROP TABLE dcb_guntur"), ledger.SumOptions{})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_COLUMN", domainErr.Code)
	})
}

func TestPartitionRepository_FindEntry(t *testing.T) {
	t.Run("returns nil for unknown gazette number", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur" WHERE gazette_no = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("AP-GZ-9999", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		entry, err := repo.FindEntry(context.Background(), ledger.PartitionID("dcb_guntur"), "AP-GZ-9999")

		assert.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPartitionRepository_UpsertEntry(t *testing.T) {
	t.Run("conflict update touches only identity, extent and demand", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		// The assignment list is pinned verbatim. A collection_* or
		// is_provisional assignment here would let a re-imported workbook
		// overwrite collected amounts; balances are recomputed against the
		// existing row's collection columns instead.
		mock.ExpectExec(`INSERT INTO "dcb_guntur" .* ON CONFLICT \("gazette_no"\) DO UPDATE SET ` +
			`"balance_arrears"=\$\d+ - collection_arrears,` +
			`"balance_current"=\$\d+ - collection_current,` +
			`"balance_total"=\$\d+ - collection_total,` +
			`"demand_arrears"=\$\d+,"demand_current"=\$\d+,"demand_total"=\$\d+,` +
			`"extent_dry"=\$\d+,"extent_total"=\$\d+,"extent_wet"=\$\d+,` +
			`"institution_name"=\$\d+,"mandal"=\$\d+,"updated_at"=\$\d+,"village"=\$\d+$`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry, err := ledger.NewEntry("AP-GZ-1001", "Jama Masjid")
		require.NoError(t, err)
		require.NoError(t, entry.SetExtent(decimal.NewFromInt(12), decimal.NewFromInt(3)))
		require.NoError(t, entry.SetDemand(decimal.NewFromInt(5000), decimal.NewFromInt(3000)))

		err = repo.UpsertEntry(context.Background(), ledger.PartitionID("dcb_guntur"), entry)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPartitionRepository_Rollback(t *testing.T) {
	t.Run("subtracts deltas inside a locked transaction", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		rows := dcbRows().AddRow(
			"AP-GZ-1001", "Jama Masjid", decimal.NewFromInt(5000), decimal.NewFromInt(3000), decimal.NewFromInt(8000),
			decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(1500),
			decimal.NewFromInt(4000), decimal.NewFromInt(2500), decimal.NewFromInt(6500), true,
			time.Now(), time.Now(),
		)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur" WHERE gazette_no = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs("AP-GZ-1001", 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "dcb_guntur" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Rollback(context.Background(), ledger.PartitionID("dcb_guntur"), "AP-GZ-1001",
			decimal.NewFromInt(1000), decimal.NewFromInt(500))

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails when the rollback exceeds collected figures", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		rows := dcbRows().AddRow(
			"AP-GZ-1001", "Jama Masjid", decimal.NewFromInt(5000), decimal.NewFromInt(3000), decimal.NewFromInt(8000),
			decimal.NewFromInt(100), decimal.NewFromInt(50), decimal.NewFromInt(150),
			decimal.NewFromInt(4900), decimal.NewFromInt(2950), decimal.NewFromInt(7850), true,
			time.Now(), time.Now(),
		)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur" WHERE gazette_no = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs("AP-GZ-1001", 1).
			WillReturnRows(rows)
		mock.ExpectRollback()

		err := repo.Rollback(context.Background(), ledger.PartitionID("dcb_guntur"), "AP-GZ-1001",
			decimal.NewFromInt(1000), decimal.NewFromInt(500))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ROLLBACK_EXCEEDS_COLLECTION", domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPartitionRepository_Finalize(t *testing.T) {
	t.Run("clears the provisional flag and stamps challan metadata", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t)
		defer mockDB.Close()

		rows := dcbRows().AddRow(
			"AP-GZ-1001", "Jama Masjid", decimal.NewFromInt(5000), decimal.NewFromInt(3000), decimal.NewFromInt(8000),
			decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(1500),
			decimal.NewFromInt(4000), decimal.NewFromInt(2500), decimal.NewFromInt(6500), true,
			time.Now(), time.Now(),
		)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur" WHERE gazette_no = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs("AP-GZ-1001", 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "dcb_guntur" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Finalize(context.Background(), ledger.PartitionID("dcb_guntur"), "AP-GZ-1001",
			ledger.ChallanDetails{ChallanNo: "CH-42"})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPartitionRepository_ReadAllPartitions(t *testing.T) {
	t.Run("skips a missing partition and keeps the rest", func(t *testing.T) {
		repo, mock, mockDB := newMockPartitionRepository(t, "Guntur", "Krishna")
		defer mockDB.Close()

		mock.MatchExpectationsInOrder(false)

		rows := dcbRows().AddRow(
			"AP-GZ-1001", "Jama Masjid", decimal.NewFromInt(5000), decimal.NewFromInt(3000), decimal.NewFromInt(8000),
			decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(1500),
			decimal.NewFromInt(4000), decimal.NewFromInt(2500), decimal.NewFromInt(6500), false,
			time.Now(), time.Now(),
		)

		mock.ExpectQuery(`SELECT \* FROM "dcb_guntur"`).WillReturnRows(rows)
		mock.ExpectQuery(`SELECT \* FROM "dcb_krishna"`).
			WillReturnError(&pq.Error{Code: "42P01", Message: `relation "dcb_krishna" does not exist`})

		result, err := repo.ReadAllPartitions(context.Background(), ledger.SweepOptions{})

		assert.NoError(t, err)
		require.NotNil(t, result)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "Guntur", result.Rows[0].District)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, "Krishna", result.Skipped[0].District)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
