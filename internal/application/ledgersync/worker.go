package ledgersync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// WorkerConfig holds configuration for the ledger sync worker
type WorkerConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	IdempotencyTTL   time.Duration
	StaleAfter       time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		IdempotencyTTL:   7 * 24 * time.Hour,
		StaleAfter:       10 * time.Minute,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  1 * time.Hour,
	}
}

// Worker drains the outbox and applies ledger mutations to the district
// partitions. Delivery is at-least-once; the idempotency store turns it into
// effectively exactly-once, which matters because rollback is not internally
// idempotent.
type Worker struct {
	outboxRepo  shared.OutboxRepository
	ledgerRepo  ledger.SafetyOperations
	idempotency shared.IdempotencyStore
	config      WorkerConfig
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a new ledger sync worker
func NewWorker(
	outboxRepo shared.OutboxRepository,
	ledgerRepo ledger.SafetyOperations,
	idempotency shared.IdempotencyStore,
	config WorkerConfig,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultWorkerConfig().StaleAfter
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		ledgerRepo:  ledgerRepo,
		idempotency: idempotency,
		config:      config,
		logger:      logger,
	}
}

// Start starts the background processing
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.processLoop(ctx)

	if w.config.CleanupEnabled {
		w.wg.Add(1)
		go w.cleanupLoop(ctx)
	}

	w.logger.Info("ledger sync worker started",
		zap.Int("batch_size", w.config.BatchSize),
		zap.Duration("poll_interval", w.config.PollInterval),
	)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("ledger sync worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) processLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch drains one batch of pending and retryable entries. Exposed so
// tests and the migration CLI can drive the worker synchronously.
func (w *Worker) ProcessBatch(ctx context.Context) {
	// Hand back claims a crashed worker left in PROCESSING; a reclaim failure
	// only delays recovery, so the batch still runs.
	reclaimed, err := w.outboxRepo.ReclaimStale(ctx, time.Now().Add(-w.config.StaleAfter))
	if err != nil {
		w.logger.Error("failed to reclaim stale entries", zap.Error(err))
	} else if reclaimed > 0 {
		w.logger.Warn("reclaimed entries stuck in processing", zap.Int64("count", reclaimed))
	}

	pending, err := w.outboxRepo.FindPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to find pending entries", zap.Error(err))
		return
	}
	if len(pending) > 0 {
		w.processEntries(ctx, pending)
	}

	retryable, err := w.outboxRepo.FindRetryable(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to find retryable entries", zap.Error(err))
		return
	}
	if len(retryable) > 0 {
		w.processEntries(ctx, retryable)
	}
}

func (w *Worker) processEntries(ctx context.Context, entries []*shared.OutboxEntry) {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	// Atomically claim entries so concurrent workers do not double apply
	claimed, err := w.outboxRepo.MarkProcessing(ctx, ids)
	if err != nil {
		w.logger.Error("failed to mark entries as processing", zap.Error(err))
		return
	}

	for _, entry := range claimed {
		w.processEntry(ctx, entry)
	}
}

func (w *Worker) processEntry(ctx context.Context, entry *shared.OutboxEntry) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.apply_mutation",
		telemetry.String(telemetry.SpanAttrCollectionID, entry.AggregateID.String()),
	)
	defer span.End()

	mutation, err := DecodeMutation(entry.Payload)
	if err != nil {
		w.logger.Error("failed to decode ledger mutation",
			zap.String("entry_id", entry.ID.String()),
			zap.String("event_type", entry.EventType),
			zap.Error(err),
		)
		w.fail(ctx, entry, err)
		return
	}

	// A crash between apply and update redelivers the entry; the idempotency
	// key stops the second application.
	firstTime, err := w.idempotency.MarkProcessed(ctx, entry.IdempotencyKey, w.config.IdempotencyTTL)
	if err != nil {
		w.logger.Error("idempotency store unavailable",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
		w.fail(ctx, entry, err)
		return
	}
	if !firstTime {
		w.logger.Info("ledger mutation already applied, skipping",
			zap.String("idempotency_key", entry.IdempotencyKey),
			zap.String("partition", mutation.Partition.String()),
		)
		entry.MarkApplied()
		if err := w.outboxRepo.Update(ctx, entry); err != nil {
			w.logger.Error("failed to mark entry as applied", zap.Error(err))
		}
		return
	}

	span.SetAttributes(
		telemetry.Stringer(telemetry.SpanAttrPartition, mutation.Partition),
		telemetry.String(telemetry.SpanAttrGazetteNo, mutation.GazetteNo),
	)

	if err := w.apply(ctx, mutation); err != nil {
		telemetry.RecordError(span, err)
		w.logger.Error("failed to apply ledger mutation",
			zap.String("entry_id", entry.ID.String()),
			zap.String("kind", string(mutation.Kind)),
			zap.String("partition", mutation.Partition.String()),
			zap.String("gazette_no", mutation.GazetteNo),
			zap.Error(err),
		)
		// release the key or the retry would be skipped as already applied
		if unmarkErr := w.idempotency.Unmark(ctx, entry.IdempotencyKey); unmarkErr != nil {
			w.logger.Error("failed to release idempotency key, manual intervention required",
				zap.String("idempotency_key", entry.IdempotencyKey),
				zap.Error(unmarkErr),
			)
		}
		w.fail(ctx, entry, err)
		return
	}

	entry.MarkApplied()
	if err := w.outboxRepo.Update(ctx, entry); err != nil {
		w.logger.Error("failed to mark entry as applied",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
	} else {
		w.logger.Debug("ledger mutation applied",
			zap.String("kind", string(mutation.Kind)),
			zap.String("partition", mutation.Partition.String()),
			zap.String("gazette_no", mutation.GazetteNo),
		)
	}
}

func (w *Worker) apply(ctx context.Context, m *Mutation) error {
	switch m.Kind {
	case MutationFinalize:
		return w.ledgerRepo.Finalize(ctx, m.Partition, m.GazetteNo, m.Challan)
	case MutationRollback:
		return w.ledgerRepo.Rollback(ctx, m.Partition, m.GazetteNo, m.ArrearDelta, m.CurrentDelta)
	default:
		return shared.NewDomainError("INVALID_MUTATION", "Unknown mutation kind")
	}
}

// fail records the error and schedules a retry with backoff, moving the entry
// to the dead letter queue once retries are exhausted.
func (w *Worker) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	if entry.IsDead() {
		w.logger.Warn("ledger mutation moved to dead letter queue",
			zap.String("entry_id", entry.ID.String()),
			zap.String("idempotency_key", entry.IdempotencyKey),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.String("last_error", entry.LastError),
		)
	}
	if err := w.outboxRepo.Update(ctx, entry); err != nil {
		w.logger.Error("failed to update entry after failure", zap.Error(err))
	}
}

func (w *Worker) cleanupLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.CleanupRetention)
	deleted, err := w.outboxRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to clean up applied entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.logger.Info("cleaned up applied outbox entries", zap.Int64("deleted", deleted))
	}
}
