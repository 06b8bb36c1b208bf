package persistence

import (
	"context"
	"fmt"

	"github.com/wakfboard/backend/internal/domain/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// partitionDDL is the schema of every district ledger table. Totals and
// balances are stored, not generated: the domain recomputes them on every
// mutation so the same code path works on stores without generated columns.
const partitionDDL = `CREATE TABLE IF NOT EXISTS %s (
	gazette_no VARCHAR(100) PRIMARY KEY,
	institution_name VARCHAR(255) NOT NULL,
	mandal VARCHAR(100) NOT NULL DEFAULT '',
	village VARCHAR(100) NOT NULL DEFAULT '',
	extent_dry DECIMAL(12,2) NOT NULL DEFAULT 0,
	extent_wet DECIMAL(12,2) NOT NULL DEFAULT 0,
	extent_total DECIMAL(12,2) NOT NULL DEFAULT 0,
	demand_arrears DECIMAL(15,2) NOT NULL DEFAULT 0,
	demand_current DECIMAL(15,2) NOT NULL DEFAULT 0,
	demand_total DECIMAL(15,2) NOT NULL DEFAULT 0,
	collection_arrears DECIMAL(15,2) NOT NULL DEFAULT 0,
	collection_current DECIMAL(15,2) NOT NULL DEFAULT 0,
	collection_total DECIMAL(15,2) NOT NULL DEFAULT 0,
	balance_arrears DECIMAL(15,2) NOT NULL DEFAULT 0,
	balance_current DECIMAL(15,2) NOT NULL DEFAULT 0,
	balance_total DECIMAL(15,2) NOT NULL DEFAULT 0,
	is_provisional BOOLEAN NOT NULL DEFAULT FALSE,
	challan_no VARCHAR(100) NOT NULL DEFAULT '',
	challan_date TIMESTAMPTZ,
	receipt_no VARCHAR(100) NOT NULL DEFAULT '',
	receipt_date TIMESTAMPTZ,
	remarks TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsurePartitions creates the ledger table for every partition the router
// knows about. Partition identifiers come from the router alone, so the
// interpolated table name is never caller input. Safe to run on every startup.
func EnsurePartitions(ctx context.Context, db *gorm.DB, router *ledger.Router, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, p := range router.Partitions() {
		ddl := fmt.Sprintf(partitionDDL, p.ID.String())
		if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to ensure partition %s for district %s: %w", p.ID, p.District, err)
		}
	}
	logger.Info("ledger partitions ensured", zap.Int("count", router.Size()))
	return nil
}
