package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wakfboard/backend/internal/domain/shared"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockOutboxRepository(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewOutboxRepository(gormDB), mock, mockDB
}

func TestOutboxRepository_ReclaimStale(t *testing.T) {
	t.Run("returns stale processing entries to pending", func(t *testing.T) {
		repo, mock, mockDB := newMockOutboxRepository(t)
		defer mockDB.Close()

		cutoff := time.Now().Add(-10 * time.Minute)

		mock.ExpectExec(`UPDATE "ledger_outbox" SET "status"=\$1,"updated_at"=\$2 WHERE status = \$3 AND updated_at < \$4`).
			WithArgs(string(shared.OutboxStatusPending), sqlmock.AnyArg(),
				string(shared.OutboxStatusProcessing), cutoff).
			WillReturnResult(sqlmock.NewResult(0, 2))

		reclaimed, err := repo.ReclaimStale(context.Background(), cutoff)

		assert.NoError(t, err)
		assert.Equal(t, int64(2), reclaimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports zero when nothing is stuck", func(t *testing.T) {
		repo, mock, mockDB := newMockOutboxRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "ledger_outbox" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		reclaimed, err := repo.ReclaimStale(context.Background(), time.Now())

		assert.NoError(t, err)
		assert.Zero(t, reclaimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
