package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultFanOutWorkers    = 8
	defaultPartitionTimeout = 3 * time.Second
	defaultRowCap           = 500

	// undefined_table in Postgres, raised when a partition table is missing
	pgUndefinedTable = "42P01"
)

// PartitionRepositoryConfig holds dependencies for PartitionRepository
type PartitionRepositoryConfig struct {
	DB     *gorm.DB
	Router *ledger.Router
	Logger *zap.Logger

	// FanOutWorkers bounds the concurrency of cross-partition sweeps
	FanOutWorkers int
	// PartitionTimeout bounds each partition query inside a sweep
	PartitionTimeout time.Duration
	// RowCap is the default per-partition row limit for bounded reads
	RowCap int
}

// PartitionRepository implements ledger.PartitionRepository against one
// physical table per district. The partition identifier doubles as the table
// name; it only ever comes from the router, never from request input.
type PartitionRepository struct {
	db               *gorm.DB
	router           *ledger.Router
	logger           *zap.Logger
	fanOutWorkers    int
	partitionTimeout time.Duration
	rowCap           int
}

// NewPartitionRepository creates a new partition repository
func NewPartitionRepository(cfg PartitionRepositoryConfig) (*PartitionRepository, error) {
	if cfg.DB == nil {
		return nil, errors.New("db is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.FanOutWorkers <= 0 {
		cfg.FanOutWorkers = defaultFanOutWorkers
	}
	if cfg.PartitionTimeout <= 0 {
		cfg.PartitionTimeout = defaultPartitionTimeout
	}
	if cfg.RowCap <= 0 {
		cfg.RowCap = defaultRowCap
	}
	return &PartitionRepository{
		db:               cfg.DB,
		router:           cfg.Router,
		logger:           cfg.Logger,
		fanOutWorkers:    cfg.FanOutWorkers,
		partitionTimeout: cfg.PartitionTimeout,
		rowCap:           cfg.RowCap,
	}, nil
}

// ReadPartition performs a bounded read of one partition. A zero RowCap means
// the repository default applies; reads are never unbounded.
func (r *PartitionRepository) ReadPartition(ctx context.Context, partition ledger.PartitionID, opts ledger.ReadOptions) ([]ledger.Entry, error) {
	limit := opts.RowCap
	if limit <= 0 {
		limit = r.rowCap
	}

	query := r.db.WithContext(ctx).Table(partition.String()).Order("gazette_no ASC").Limit(limit)
	if opts.VerifiedOnly {
		query = query.Where("is_provisional = ?", false)
	}

	var modelList []models.DCBEntryModel
	if err := query.Find(&modelList).Error; err != nil {
		return nil, r.translatePartitionError(partition, err)
	}

	entries := make([]ledger.Entry, 0, len(modelList))
	for i := range modelList {
		entries = append(entries, *modelList[i].ToDomain())
	}
	return entries, nil
}

// ReadAllPartitions fans out a bounded read across every registered partition.
// Concurrency is capped, each partition gets its own timeout, and a failing
// partition is skipped and reported rather than failing the sweep.
func (r *PartitionRepository) ReadAllPartitions(ctx context.Context, opts ledger.SweepOptions) (*ledger.SweepResult, error) {
	partitions := r.router.Partitions()

	type partitionResult struct {
		rows    []ledger.DistrictEntry
		skipped *ledger.SkippedPartition
	}

	results := make([]partitionResult, len(partitions))
	sem := make(chan struct{}, r.fanOutWorkers)
	var wg sync.WaitGroup

	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p ledger.Partition) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pctx, cancel := context.WithTimeout(ctx, r.partitionTimeout)
			defer cancel()

			entries, err := r.ReadPartition(pctx, p.ID, ledger.ReadOptions{
				VerifiedOnly: opts.VerifiedOnly,
				RowCap:       opts.RowCapPerPartition,
			})
			if err != nil {
				r.logger.Warn("partition skipped during sweep",
					zap.String("district", p.District),
					zap.String("partition", p.ID.String()),
					zap.Error(err))
				results[i] = partitionResult{skipped: &ledger.SkippedPartition{
					District: p.District,
					Reason:   err.Error(),
				}}
				return
			}

			rows := make([]ledger.DistrictEntry, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, ledger.DistrictEntry{District: p.District, Entry: e})
			}
			results[i] = partitionResult{rows: rows}
		}(i, p)
	}
	wg.Wait()

	out := &ledger.SweepResult{}
	for _, res := range results {
		if res.skipped != nil {
			out.Skipped = append(out.Skipped, *res.skipped)
			continue
		}
		out.Rows = append(out.Rows, res.rows...)
	}
	return out, nil
}

// SumColumn pushes a column aggregation down to the store. The column must be
// on the summable whitelist; the identifier is interpolated only after that
// check, so no caller-supplied string ever reaches the SQL text.
func (r *PartitionRepository) SumColumn(ctx context.Context, partition ledger.PartitionID, column ledger.Column, opts ledger.SumOptions) (decimal.Decimal, error) {
	if !column.IsValid() {
		return decimal.Zero, shared.NewDomainError("INVALID_COLUMN",
			fmt.Sprintf("Column %q is not summable", column))
	}

	query := r.db.WithContext(ctx).Table(partition.String())
	if opts.VerifiedOnly {
		query = query.Where("is_provisional = ?", false)
	}

	var sum decimal.Decimal
	err := query.
		Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", column.String())).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, r.translatePartitionError(partition, err)
	}
	return sum, nil
}

// FindEntry looks up one institution's entry by gazette number.
// Returns (nil, nil) when no entry exists.
func (r *PartitionRepository) FindEntry(ctx context.Context, partition ledger.PartitionID, gazetteNo string) (*ledger.Entry, error) {
	var model models.DCBEntryModel
	err := r.db.WithContext(ctx).
		Table(partition.String()).
		Where("gazette_no = ?", gazetteNo).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.translatePartitionError(partition, err)
	}
	return model.ToDomain(), nil
}

// SeedEntry inserts a new ledger entry into a partition
func (r *PartitionRepository) SeedEntry(ctx context.Context, partition ledger.PartitionID, entry *ledger.Entry) error {
	var model models.DCBEntryModel
	model.FromDomain(entry)
	err := r.db.WithContext(ctx).Table(partition.String()).Create(&model).Error
	if err != nil {
		return r.translatePartitionError(partition, err)
	}
	return nil
}

// UpsertEntry inserts a row or, on gazette_no conflict, refreshes only the
// seed-owned columns: identity, extent and demand. Collection figures and the
// provisional flag change through provisional credit, finalize and rollback
// alone, so a re-imported workbook can never overwrite collected amounts.
// Balances are recomputed in place from the new demand and the row's existing
// collection figures.
func (r *PartitionRepository) UpsertEntry(ctx context.Context, partition ledger.PartitionID, entry *ledger.Entry) error {
	var model models.DCBEntryModel
	model.FromDomain(entry)
	err := r.db.WithContext(ctx).
		Table(partition.String()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "gazette_no"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"institution_name": model.InstitutionName,
				"mandal":           model.Mandal,
				"village":          model.Village,
				"extent_dry":       model.ExtentDry,
				"extent_wet":       model.ExtentWet,
				"extent_total":     model.ExtentTotal,
				"demand_arrears":   model.DemandArrears,
				"demand_current":   model.DemandCurrent,
				"demand_total":     model.DemandTotal,
				// unqualified columns in DO UPDATE refer to the existing row
				"balance_arrears": gorm.Expr("? - collection_arrears", model.DemandArrears),
				"balance_current": gorm.Expr("? - collection_current", model.DemandCurrent),
				"balance_total":   gorm.Expr("? - collection_total", model.DemandTotal),
				"updated_at":      model.UpdatedAt,
			}),
		}).
		Create(&model).Error
	if err != nil {
		return r.translatePartitionError(partition, err)
	}
	return nil
}

// ApplyProvisionalCredit adds a submission's amounts to the entry and marks it
// provisional. Runs inside a transaction with the row locked, so concurrent
// submissions against the same institution serialize.
func (r *PartitionRepository) ApplyProvisionalCredit(ctx context.Context, partition ledger.PartitionID, gazetteNo string, arrears, current decimal.Decimal) error {
	return r.mutateEntry(ctx, partition, gazetteNo, func(e *ledger.Entry) error {
		return e.ApplyProvisionalCredit(arrears, current)
	})
}

// Finalize confirms a provisional credit. Idempotent: finalizing an entry that
// is no longer provisional leaves it unchanged.
func (r *PartitionRepository) Finalize(ctx context.Context, partition ledger.PartitionID, gazetteNo string, challan ledger.ChallanDetails) error {
	return r.mutateEntry(ctx, partition, gazetteNo, func(e *ledger.Entry) error {
		e.Finalize(challan)
		return nil
	})
}

// Rollback subtracts the given deltas from the collection figures. Not
// internally idempotent; the sync worker guards invocation with the
// idempotency store.
func (r *PartitionRepository) Rollback(ctx context.Context, partition ledger.PartitionID, gazetteNo string, arrearDelta, currentDelta decimal.Decimal) error {
	return r.mutateEntry(ctx, partition, gazetteNo, func(e *ledger.Entry) error {
		return e.Rollback(arrearDelta, currentDelta)
	})
}

// mutateEntry loads the row under FOR UPDATE, applies the domain mutation and
// writes the result back in one transaction.
func (r *PartitionRepository) mutateEntry(ctx context.Context, partition ledger.PartitionID, gazetteNo string, mutate func(*ledger.Entry) error) error {
	table := partition.String()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.DCBEntryModel
		err := tx.Table(table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gazette_no = ?", gazetteNo).
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewDomainError("ENTRY_NOT_FOUND",
					fmt.Sprintf("No ledger entry for gazette %q in partition %q", gazetteNo, table))
			}
			return r.translatePartitionError(partition, err)
		}

		entry := model.ToDomain()
		if err := mutate(entry); err != nil {
			return err
		}

		var updated models.DCBEntryModel
		updated.FromDomain(entry)
		err = tx.Table(table).
			Where("gazette_no = ?", gazetteNo).
			Updates(dcbUpdateColumns(&updated)).Error
		if err != nil {
			return r.translatePartitionError(partition, err)
		}
		return nil
	})
}

// dcbUpdateColumns lists every mutable column of a ledger row. A map keeps
// zero values (cleared provisional flag, zeroed balances) in the statement.
func dcbUpdateColumns(m *models.DCBEntryModel) map[string]interface{} {
	return map[string]interface{}{
		"collection_arrears": m.CollectionArrears,
		"collection_current": m.CollectionCurrent,
		"collection_total":   m.CollectionTotal,
		"balance_arrears":    m.BalanceArrears,
		"balance_current":    m.BalanceCurrent,
		"balance_total":      m.BalanceTotal,
		"is_provisional":     m.IsProvisional,
		"challan_no":         m.ChallanNo,
		"challan_date":       m.ChallanDate,
		"receipt_no":         m.ReceiptNo,
		"receipt_date":       m.ReceiptDate,
		"remarks":            m.Remarks,
		"updated_at":         m.UpdatedAt,
	}
}

// translatePartitionError maps a missing partition table onto the domain's
// partition-unavailable error so callers can skip rather than fail.
func (r *PartitionRepository) translatePartitionError(partition ledger.PartitionID, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUndefinedTable {
		return fmt.Errorf("partition %s: %w", partition, shared.ErrPartitionUnavailable)
	}
	// fallback for drivers and proxies that surface a missing relation
	// only through the message text, without a typed error code
	if strings.Contains(err.Error(), "no such table") ||
		strings.Contains(err.Error(), "does not exist") {
		return fmt.Errorf("partition %s: %w", partition, shared.ErrPartitionUnavailable)
	}
	return fmt.Errorf("partition %s query failed: %w", partition, err)
}

var _ ledger.PartitionRepository = (*PartitionRepository)(nil)
