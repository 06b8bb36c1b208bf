package dcb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AggregationConfig bounds the cross-partition fan-out
type AggregationConfig struct {
	// Workers caps concurrent partition queries
	Workers int
	// PartitionTimeout bounds each partition query so one slow district cannot
	// stall the whole dashboard
	PartitionTimeout time.Duration
	// DetailRowCap is the per-partition row cap for detail views
	DetailRowCap int
}

// DefaultAggregationConfig returns default configuration
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		Workers:          8,
		PartitionTimeout: 3 * time.Second,
		DetailRowCap:     500,
	}
}

// DistrictStats is one district's DCB headline figures
type DistrictStats struct {
	District      string          `json:"district"`
	Demand        decimal.Decimal `json:"demand"`
	Collection    decimal.Decimal `json:"collection"`
	Balance       decimal.Decimal `json:"balance"`
	CollectionPct decimal.Decimal `json:"collection_pct"`
}

// Stats is the board-wide DCB dashboard payload. Totals are exact sums of the
// store-pushed per-partition aggregates, never sums over row-capped reads.
type Stats struct {
	TotalDemand      decimal.Decimal           `json:"total_demand"`
	TotalCollection  decimal.Decimal           `json:"total_collection"`
	TotalBalance     decimal.Decimal           `json:"total_balance"`
	Districts        []DistrictStats           `json:"districts"`
	SkippedDistricts []ledger.SkippedPartition `json:"skipped_districts,omitempty"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// RankedDistrict is one row of the district league table
type RankedDistrict struct {
	Rank int `json:"rank"`
	DistrictStats
}

// AggregationService computes board-wide DCB views across all district
// partitions. Partition failures degrade the result instead of failing it:
// unreachable districts are reported in SkippedDistricts.
type AggregationService struct {
	reader ledger.PartitionReader
	router *ledger.Router
	config AggregationConfig
	logger *zap.Logger
}

// AggregationServiceConfig holds configuration for the aggregation service
type AggregationServiceConfig struct {
	Reader ledger.PartitionReader
	Router *ledger.Router
	Config AggregationConfig
	Logger *zap.Logger
}

// NewAggregationService creates a new AggregationService
func NewAggregationService(config AggregationServiceConfig) *AggregationService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := config.Config
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultAggregationConfig().Workers
	}
	if cfg.PartitionTimeout <= 0 {
		cfg.PartitionTimeout = DefaultAggregationConfig().PartitionTimeout
	}
	if cfg.DetailRowCap <= 0 {
		cfg.DetailRowCap = DefaultAggregationConfig().DetailRowCap
	}
	return &AggregationService{
		reader: config.Reader,
		router: config.Router,
		config: cfg,
		logger: logger,
	}
}

// HeadlineStats computes the exact demand/collection/balance totals per
// district and board-wide, using store-pushed sums.
func (s *AggregationService) HeadlineStats(ctx context.Context, verifiedOnly bool) (*Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "dashboard.headline_stats")
	defer span.End()

	type partitionSums struct {
		district string
		stats    DistrictStats
		err      error
	}

	partitions := s.router.Partitions()
	results := make([]partitionSums, len(partitions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.config.Workers)

	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p ledger.Partition) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pctx, cancel := context.WithTimeout(ctx, s.config.PartitionTimeout)
			defer cancel()

			stats, err := s.sumPartition(pctx, p, verifiedOnly)
			results[i] = partitionSums{district: p.District, stats: stats, err: err}
		}(i, p)
	}
	wg.Wait()

	out := &Stats{
		TotalDemand:     decimal.Zero,
		TotalCollection: decimal.Zero,
		TotalBalance:    decimal.Zero,
		Districts:       make([]DistrictStats, 0, len(partitions)),
		GeneratedAt:     time.Now(),
	}

	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("Skipping district in headline stats",
				zap.String("district", r.district),
				zap.Error(r.err))
			out.SkippedDistricts = append(out.SkippedDistricts, ledger.SkippedPartition{
				District: r.district,
				Reason:   r.err.Error(),
			})
			continue
		}
		out.Districts = append(out.Districts, r.stats)
		out.TotalDemand = out.TotalDemand.Add(r.stats.Demand)
		out.TotalCollection = out.TotalCollection.Add(r.stats.Collection)
		out.TotalBalance = out.TotalBalance.Add(r.stats.Balance)
	}

	return out, nil
}

// DistrictRankings returns districts ordered by collection descending
func (s *AggregationService) DistrictRankings(ctx context.Context, verifiedOnly bool) ([]RankedDistrict, []ledger.SkippedPartition, error) {
	stats, err := s.HeadlineStats(ctx, verifiedOnly)
	if err != nil {
		return nil, nil, err
	}

	districts := stats.Districts
	sort.SliceStable(districts, func(i, j int) bool {
		return districts[i].Collection.GreaterThan(districts[j].Collection)
	})

	ranked := make([]RankedDistrict, len(districts))
	for i, d := range districts {
		ranked[i] = RankedDistrict{Rank: i + 1, DistrictStats: d}
	}
	return ranked, stats.SkippedDistricts, nil
}

// DetailRows returns capped per-institution rows across all partitions for
// drill-down views. Row caps mean this is a browsing surface, not a source of
// exact totals.
func (s *AggregationService) DetailRows(ctx context.Context, verifiedOnly bool) (*ledger.SweepResult, error) {
	return s.reader.ReadAllPartitions(ctx, ledger.SweepOptions{
		VerifiedOnly:       verifiedOnly,
		RowCapPerPartition: s.config.DetailRowCap,
	})
}

// DistrictRows returns the capped rows of one district partition
func (s *AggregationService) DistrictRows(ctx context.Context, district string, verifiedOnly bool) ([]ledger.Entry, error) {
	partition, err := s.router.Resolve(district)
	if err != nil {
		return nil, err
	}
	return s.reader.ReadPartition(ctx, partition, ledger.ReadOptions{
		VerifiedOnly: verifiedOnly,
		RowCap:       s.config.DetailRowCap,
	})
}

// InstitutionEntry returns one institution's ledger row
func (s *AggregationService) InstitutionEntry(ctx context.Context, district, gazetteNo string) (*ledger.Entry, error) {
	partition, err := s.router.Resolve(district)
	if err != nil {
		return nil, err
	}
	return s.reader.FindEntry(ctx, partition, gazetteNo)
}

// CountInstitutions counts institutions across all partitions, deduplicated by
// gazette number. Built on the capped sweep, so on very large partitions it is
// a floor rather than an exact census.
func (s *AggregationService) CountInstitutions(ctx context.Context) (int, []ledger.SkippedPartition, error) {
	sweep, err := s.reader.ReadAllPartitions(ctx, ledger.SweepOptions{
		RowCapPerPartition: s.config.DetailRowCap,
	})
	if err != nil {
		return 0, nil, err
	}

	seen := make(map[string]struct{}, len(sweep.Rows))
	for _, row := range sweep.Rows {
		seen[row.GazetteNo] = struct{}{}
	}
	return len(seen), sweep.Skipped, nil
}

func (s *AggregationService) sumPartition(ctx context.Context, p ledger.Partition, verifiedOnly bool) (DistrictStats, error) {
	opts := ledger.SumOptions{VerifiedOnly: verifiedOnly}

	demand, err := s.reader.SumColumn(ctx, p.ID, ledger.ColumnDemandTotal, opts)
	if err != nil {
		return DistrictStats{}, err
	}
	collected, err := s.reader.SumColumn(ctx, p.ID, ledger.ColumnCollectionTotal, opts)
	if err != nil {
		return DistrictStats{}, err
	}
	balance, err := s.reader.SumColumn(ctx, p.ID, ledger.ColumnBalanceTotal, opts)
	if err != nil {
		return DistrictStats{}, err
	}

	stats := DistrictStats{
		District:   p.District,
		Demand:     demand,
		Collection: collected,
		Balance:    balance,
	}
	if demand.IsPositive() {
		stats.CollectionPct = collected.Div(demand).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return stats, nil
}
