package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func createTestEntry(t *testing.T) *Entry {
	e, err := NewEntry("AP123", "Masjid-e-Ala")
	require.NoError(t, err)
	require.NoError(t, e.SetDemand(dec(5000), dec(3000)))
	return e
}

func TestNewEntry(t *testing.T) {
	e, err := NewEntry("AP123", "Masjid-e-Ala")
	require.NoError(t, err)
	assert.Equal(t, "AP123", e.GazetteNo)
	assert.True(t, e.CollectionTotal.IsZero())
	assert.False(t, e.IsProvisional)

	_, err = NewEntry("", "Masjid-e-Ala")
	assert.Error(t, err)
	_, err = NewEntry("AP123", "")
	assert.Error(t, err)
}

func TestEntry_Recompute(t *testing.T) {
	e := createTestEntry(t)
	assert.True(t, e.DemandTotal.Equal(dec(8000)))
	assert.True(t, e.BalanceTotal.Equal(dec(8000)))

	require.NoError(t, e.SetExtent(decimal.NewFromFloat(12.5), decimal.NewFromFloat(7.5)))
	assert.True(t, e.ExtentTotal.Equal(dec(20)))
}

func TestEntry_ApplyProvisionalCredit(t *testing.T) {
	e := createTestEntry(t)

	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))

	assert.True(t, e.IsProvisional)
	assert.True(t, e.CollectionArrears.Equal(dec(1000)))
	assert.True(t, e.CollectionCurrent.Equal(dec(500)))
	assert.True(t, e.CollectionTotal.Equal(dec(1500)))
	assert.True(t, e.BalanceTotal.Equal(dec(6500)))
}

func TestEntry_ApplyProvisionalCredit_Invalid(t *testing.T) {
	e := createTestEntry(t)

	assert.Error(t, e.ApplyProvisionalCredit(dec(-1), dec(500)))
	assert.Error(t, e.ApplyProvisionalCredit(dec(0), dec(0)))
}

func TestEntry_Finalize(t *testing.T) {
	e := createTestEntry(t)
	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))
	totalBefore := e.CollectionTotal

	challanDate := time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)
	e.Finalize(ChallanDetails{ChallanNo: "CH001", ChallanDate: &challanDate, Remarks: "verified by accounts"})

	assert.False(t, e.IsProvisional)
	assert.Equal(t, "CH001", e.ChallanNo)
	assert.Equal(t, "verified by accounts", e.Remarks)
	// finalize confirms, it never credits again
	assert.True(t, e.CollectionTotal.Equal(totalBefore))
}

func TestEntry_Finalize_Idempotent(t *testing.T) {
	e := createTestEntry(t)
	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))

	d1 := time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)
	e.Finalize(ChallanDetails{ChallanNo: "CH001", ChallanDate: &d1})
	snapshot := *e

	// second invocation with different metadata must be a no-op
	d2 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	e.Finalize(ChallanDetails{ChallanNo: "CH999", ChallanDate: &d2})

	assert.Equal(t, snapshot.ChallanNo, e.ChallanNo)
	assert.Equal(t, snapshot.ChallanDate, e.ChallanDate)
	assert.True(t, snapshot.CollectionTotal.Equal(e.CollectionTotal))
}

func TestEntry_Rollback(t *testing.T) {
	e := createTestEntry(t)
	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))

	require.NoError(t, e.Rollback(dec(1000), dec(500)))

	assert.False(t, e.IsProvisional)
	assert.True(t, e.CollectionArrears.IsZero())
	assert.True(t, e.CollectionCurrent.IsZero())
	assert.True(t, e.CollectionTotal.IsZero())
	assert.True(t, e.BalanceTotal.Equal(dec(8000)))
}

func TestEntry_Rollback_RestoresPreSubmissionState(t *testing.T) {
	e := createTestEntry(t)
	// prior confirmed collections
	require.NoError(t, e.ApplyProvisionalCredit(dec(1500), dec(500)))
	e.Finalize(ChallanDetails{ChallanNo: "CH000"})
	preArrears := e.CollectionArrears
	preCurrent := e.CollectionCurrent

	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))
	require.NoError(t, e.Rollback(dec(1000), dec(500)))

	assert.True(t, e.CollectionArrears.Equal(preArrears))
	assert.True(t, e.CollectionCurrent.Equal(preCurrent))
}

func TestEntry_Rollback_IsNotIdempotent(t *testing.T) {
	e := createTestEntry(t)
	require.NoError(t, e.ApplyProvisionalCredit(dec(2000), dec(1000)))

	require.NoError(t, e.Rollback(dec(1000), dec(500)))
	require.NoError(t, e.Rollback(dec(1000), dec(500)))

	// double invocation double-subtracts; exactly-once lives with the caller
	assert.True(t, e.CollectionArrears.IsZero())
	assert.True(t, e.CollectionCurrent.IsZero())
}

func TestEntry_Rollback_RejectsExceedingDeltas(t *testing.T) {
	e := createTestEntry(t)
	require.NoError(t, e.ApplyProvisionalCredit(dec(1000), dec(500)))

	err := e.Rollback(dec(2000), dec(500))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	assert.Error(t, e.Rollback(dec(-1), dec(0)))
}
