package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Column identifies a summable ledger column. Acting as a whitelist keeps
// partition queries free of caller-supplied identifiers.
type Column string

const (
	ColumnDemandArrears     Column = "demand_arrears"
	ColumnDemandCurrent     Column = "demand_current"
	ColumnDemandTotal       Column = "demand_total"
	ColumnCollectionArrears Column = "collection_arrears"
	ColumnCollectionCurrent Column = "collection_current"
	ColumnCollectionTotal   Column = "collection_total"
	ColumnBalanceArrears    Column = "balance_arrears"
	ColumnBalanceCurrent    Column = "balance_current"
	ColumnBalanceTotal      Column = "balance_total"
)

// IsValid checks whether the column is part of the summable whitelist
func (c Column) IsValid() bool {
	switch c {
	case ColumnDemandArrears, ColumnDemandCurrent, ColumnDemandTotal,
		ColumnCollectionArrears, ColumnCollectionCurrent, ColumnCollectionTotal,
		ColumnBalanceArrears, ColumnBalanceCurrent, ColumnBalanceTotal:
		return true
	}
	return false
}

// String returns the column name
func (c Column) String() string {
	return string(c)
}

// ReadOptions bounds a single-partition read
type ReadOptions struct {
	// VerifiedOnly restricts the read to entries whose provisional flag is
	// cleared (confirmed collections only)
	VerifiedOnly bool
	// RowCap limits the number of rows returned; zero means the repository
	// default cap applies, it never means unbounded
	RowCap int
}

// SumOptions scopes a store-pushed column sum
type SumOptions struct {
	VerifiedOnly bool
}

// SweepOptions controls a fan-out read across every partition
type SweepOptions struct {
	VerifiedOnly       bool
	RowCapPerPartition int
}

// DistrictEntry is a ledger entry tagged with its source district
type DistrictEntry struct {
	District string `json:"district"`
	Entry
}

// SkippedPartition records a partition dropped from a sweep and why
type SkippedPartition struct {
	District string `json:"district"`
	Reason   string `json:"reason"`
}

// SweepResult carries the rows of a cross-partition sweep plus the partitions
// that had to be skipped. A sweep never fails as a whole because one district's
// partition is missing or errors.
type SweepResult struct {
	Rows    []DistrictEntry    `json:"rows"`
	Skipped []SkippedPartition `json:"skipped"`
}

// PartitionReader is the read side of the ledger partition accessor
type PartitionReader interface {
	// ReadPartition performs a bounded read of one partition
	ReadPartition(ctx context.Context, partition PartitionID, opts ReadOptions) ([]Entry, error)

	// ReadAllPartitions fans out across all registered partitions. Individual
	// partition failures are skipped and reported in the result, never
	// propagated as an error for the whole sweep.
	ReadAllPartitions(ctx context.Context, opts SweepOptions) (*SweepResult, error)

	// SumColumn pushes a column aggregation down to the store. Used on hot
	// dashboard paths where row-capped reads would under-count.
	SumColumn(ctx context.Context, partition PartitionID, column Column, opts SumOptions) (decimal.Decimal, error)

	// FindEntry looks up one institution's entry by gazette number
	FindEntry(ctx context.Context, partition PartitionID, gazetteNo string) (*Entry, error)
}

// PartitionWriter is the write side of the ledger partition accessor
type PartitionWriter interface {
	// SeedEntry inserts a new ledger entry into a partition
	SeedEntry(ctx context.Context, partition PartitionID, entry *Entry) error

	// UpsertEntry inserts or replaces an entry keyed by gazette number
	UpsertEntry(ctx context.Context, partition PartitionID, entry *Entry) error

	// ApplyProvisionalCredit adds a submission's amounts to the entry and
	// marks it provisional
	ApplyProvisionalCredit(ctx context.Context, partition PartitionID, gazetteNo string, arrears, current decimal.Decimal) error
}

// SafetyOperations are the two guarded mutations invoked by the verification
// workflow.
type SafetyOperations interface {
	// Finalize confirms a provisional credit: clears the provisional flag and
	// stamps challan metadata. Idempotent - a second invocation is a no-op,
	// never a second credit.
	Finalize(ctx context.Context, partition PartitionID, gazetteNo string, challan ChallanDetails) error

	// Rollback subtracts the given deltas from the collection figures and
	// recomputes balances. Not internally idempotent; the caller must
	// guarantee exactly-once invocation per rejection.
	Rollback(ctx context.Context, partition PartitionID, gazetteNo string, arrearDelta, currentDelta decimal.Decimal) error
}

// PartitionRepository is the full ledger partition accessor
type PartitionRepository interface {
	PartitionReader
	PartitionWriter
	SafetyOperations
}
