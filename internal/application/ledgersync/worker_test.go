package ledgersync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wakfboard/backend/internal/domain/collection"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/domain/shared"
	"github.com/wakfboard/backend/internal/domain/shared/valueobject"
)

// =============================================================================
// Mock Outbox Repository
// =============================================================================

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*shared.OutboxEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[shared.OutboxStatus]int64), args.Error(1)
}

// =============================================================================
// Mock Safety Operations
// =============================================================================

type MockSafetyOperations struct {
	mock.Mock
}

func (m *MockSafetyOperations) Finalize(ctx context.Context, partition ledger.PartitionID, gazetteNo string, challan ledger.ChallanDetails) error {
	args := m.Called(ctx, partition, gazetteNo, challan)
	return args.Error(0)
}

func (m *MockSafetyOperations) Rollback(ctx context.Context, partition ledger.PartitionID, gazetteNo string, arrearDelta, currentDelta decimal.Decimal) error {
	args := m.Called(ctx, partition, gazetteNo, arrearDelta, currentDelta)
	return args.Error(0)
}

// =============================================================================
// In-memory Idempotency Store
// =============================================================================

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: make(map[string]bool)}
}

func (s *memoryStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryStore) Unmark(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memoryStore) Close() error { return nil }

// =============================================================================
// Test Helpers
// =============================================================================

func approvedEntry(t *testing.T) (*shared.OutboxEntry, *collection.Collection) {
	c, err := collection.NewCollection(
		uuid.New(), "AP123", "Guntur", uuid.New(),
		valueobject.NewMoneyINRFromFloat(1000),
		valueobject.NewMoneyINRFromFloat(500),
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.NoError(t, c.SendToAccounts())
	require.NoError(t, c.Approve(uuid.New(), "CH001", nil, "ok"))

	events := c.GetDomainEvents()
	event := events[len(events)-1].(*collection.CollectionApprovedEvent)
	entry, err := NewFinalizeEntry(event, c, "dcb_guntur")
	require.NoError(t, err)
	return entry, c
}

func rejectedEntry(t *testing.T) (*shared.OutboxEntry, *collection.Collection) {
	c, err := collection.NewCollection(
		uuid.New(), "AP123", "Guntur", uuid.New(),
		valueobject.NewMoneyINRFromFloat(1000),
		valueobject.NewMoneyINRFromFloat(500),
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.NoError(t, c.SendToAccounts())
	require.NoError(t, c.Reject(uuid.New(), "duplicate"))

	events := c.GetDomainEvents()
	event := events[len(events)-1].(*collection.CollectionRejectedEvent)
	entry, err := NewRollbackEntry(event, c, "dcb_guntur")
	require.NoError(t, err)
	return entry, c
}

func newTestWorker(outboxRepo *MockOutboxRepository, ops *MockSafetyOperations, store shared.IdempotencyStore) *Worker {
	return NewWorker(outboxRepo, ops, store, DefaultWorkerConfig(), nil)
}

// =============================================================================
// Mutation Tests
// =============================================================================

func TestMutation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		m       Mutation
		wantErr bool
	}{
		{
			name: "valid finalize",
			m: Mutation{
				Kind: MutationFinalize, CollectionID: uuid.New(),
				Partition: "dcb_guntur", GazetteNo: "AP123",
				Challan: ledger.ChallanDetails{ChallanNo: "CH001"},
			},
		},
		{
			name: "finalize without challan",
			m: Mutation{
				Kind: MutationFinalize, CollectionID: uuid.New(),
				Partition: "dcb_guntur", GazetteNo: "AP123",
			},
			wantErr: true,
		},
		{
			name: "valid rollback",
			m: Mutation{
				Kind: MutationRollback, CollectionID: uuid.New(),
				Partition: "dcb_guntur", GazetteNo: "AP123",
				ArrearDelta: decimal.NewFromInt(100), CurrentDelta: decimal.NewFromInt(50),
			},
		},
		{
			name: "rollback with negative delta",
			m: Mutation{
				Kind: MutationRollback, CollectionID: uuid.New(),
				Partition: "dcb_guntur", GazetteNo: "AP123",
				ArrearDelta: decimal.NewFromInt(-1),
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			m: Mutation{
				Kind: "CREDIT", CollectionID: uuid.New(),
				Partition: "dcb_guntur", GazetteNo: "AP123",
			},
			wantErr: true,
		},
		{
			name: "missing partition",
			m: Mutation{
				Kind: MutationRollback, CollectionID: uuid.New(),
				GazetteNo: "AP123",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMutation_RoundTrip(t *testing.T) {
	entry, c := rejectedEntry(t)

	m, err := DecodeMutation(entry.Payload)
	require.NoError(t, err)

	assert.Equal(t, MutationRollback, m.Kind)
	assert.Equal(t, c.ID, m.CollectionID)
	assert.True(t, m.ArrearDelta.Equal(decimal.NewFromInt(1000)))
	assert.True(t, m.CurrentDelta.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "ledger:ROLLBACK:"+c.ID.String(), entry.IdempotencyKey)
}

func TestDecodeMutation_Invalid(t *testing.T) {
	_, err := DecodeMutation([]byte("not json"))
	assert.Error(t, err)

	payload, err := json.Marshal(Mutation{Kind: "CREDIT"})
	require.NoError(t, err)
	_, err = DecodeMutation(payload)
	assert.Error(t, err)
}

// =============================================================================
// Worker Tests
// =============================================================================

func TestWorker_AppliesFinalize(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := approvedEntry(t)

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, []uuid.UUID{entry.ID}).Return([]*shared.OutboxEntry{entry}, nil)
	ops.On("Finalize", mock.Anything, ledger.PartitionID("dcb_guntur"), "AP123",
		mock.AnythingOfType("ledger.ChallanDetails")).Return(nil)
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, newMemoryStore())
	w.ProcessBatch(context.Background())

	assert.Equal(t, shared.OutboxStatusApplied, entry.Status)
	ops.AssertExpectations(t)
	outboxRepo.AssertExpectations(t)
}

func TestWorker_AppliesRollbackExactlyOnce(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := rejectedEntry(t)
	store := newMemoryStore()

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	ops.On("Rollback", mock.Anything, ledger.PartitionID("dcb_guntur"), "AP123",
		mock.Anything, mock.Anything).Return(nil).Once()
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, store)

	// redelivery of the same entry must not subtract twice
	w.ProcessBatch(context.Background())
	entry.Status = shared.OutboxStatusPending
	w.ProcessBatch(context.Background())

	assert.Equal(t, shared.OutboxStatusApplied, entry.Status)
	ops.AssertNumberOfCalls(t, "Rollback", 1)
}

func TestWorker_FailureSchedulesRetryAndReleasesKey(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := rejectedEntry(t)
	store := newMemoryStore()

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	ops.On("Rollback", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(errors.New("partition offline"))
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, store)
	w.ProcessBatch(context.Background())

	assert.Equal(t, shared.OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	assert.NotNil(t, entry.NextRetryAt)

	// the key must be free again or the retry would be skipped
	processed, err := store.IsProcessed(context.Background(), entry.IdempotencyKey)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_ExhaustedRetriesGoToDeadLetter(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := rejectedEntry(t)
	entry.RetryCount = entry.MaxRetries - 1

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	ops.On("Rollback", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(errors.New("partition offline"))
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, newMemoryStore())
	w.ProcessBatch(context.Background())

	assert.True(t, entry.IsDead())
}

func TestWorker_MalformedPayloadFails(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := rejectedEntry(t)
	entry.Payload = []byte("garbage")

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, newMemoryStore())
	w.ProcessBatch(context.Background())

	assert.Equal(t, shared.OutboxStatusFailed, entry.Status)
	ops.AssertNotCalled(t, "Rollback", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ops.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_ReclaimsStaleClaimsEachBatch(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)

	// Entries a crashed worker left in PROCESSING are only visible to the
	// reclaim; every batch must hand them back before polling.
	var cutoff time.Time
	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cutoff = args.Get(1).(time.Time) }).
		Return(int64(2), nil)
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)

	w := newTestWorker(outboxRepo, ops, newMemoryStore())
	w.ProcessBatch(context.Background())

	outboxRepo.AssertCalled(t, "ReclaimStale", mock.Anything, mock.Anything)
	expected := time.Now().Add(-DefaultWorkerConfig().StaleAfter)
	assert.WithinDuration(t, expected, cutoff, time.Minute)
}

func TestWorker_ReclaimFailureDoesNotBlockBatch(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	ops := new(MockSafetyOperations)
	entry, _ := approvedEntry(t)

	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil)
	outboxRepo.On("MarkProcessing", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{entry}, nil)
	ops.On("Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	outboxRepo.On("Update", mock.Anything, entry).Return(nil)

	w := newTestWorker(outboxRepo, ops, newMemoryStore())
	w.ProcessBatch(context.Background())

	assert.Equal(t, shared.OutboxStatusApplied, entry.Status)
}

func TestWorker_StartStop(t *testing.T) {
	outboxRepo := new(MockOutboxRepository)
	outboxRepo.On("ReclaimStale", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	outboxRepo.On("FindPending", mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil).Maybe()
	outboxRepo.On("FindRetryable", mock.Anything, mock.Anything, mock.Anything).Return([]*shared.OutboxEntry{}, nil).Maybe()

	w := newTestWorker(outboxRepo, new(MockSafetyOperations), newMemoryStore())
	require.NoError(t, w.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(ctx))
}
