package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.NewFromInt(100), INR)
	require.NoError(t, err)
	assert.Equal(t, INR, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromInt(100)))

	_, err = NewMoney(decimal.Zero, "")
	assert.Error(t, err)
}

func TestNewMoneyINRFromString(t *testing.T) {
	m, err := NewMoneyINRFromString("1234.56")
	require.NoError(t, err)
	assert.Equal(t, "1234.56 INR", m.String())

	_, err = NewMoneyINRFromString("not-a-number")
	assert.Error(t, err)
}

func TestMoney_AddSub(t *testing.T) {
	a := NewMoneyINRFromFloat(1000)
	b := NewMoneyINRFromFloat(500)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromInt(1500)))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromInt(500)))

	usd, err := NewMoney(decimal.NewFromInt(1), USD)
	require.NoError(t, err)
	_, err = a.Add(usd)
	assert.Error(t, err)
	_, err = a.Sub(usd)
	assert.Error(t, err)
}

func TestMoney_Predicates(t *testing.T) {
	assert.True(t, ZeroINR().IsZero())
	assert.True(t, NewMoneyINRFromFloat(10).IsPositive())
	assert.True(t, NewMoneyINRFromFloat(-10).IsNegative())
	assert.True(t, NewMoneyINRFromFloat(10).GreaterThan(NewMoneyINRFromFloat(5)))
	assert.True(t, NewMoneyINRFromFloat(5).LessThan(NewMoneyINRFromFloat(10)))
	assert.True(t, NewMoneyINRFromFloat(5).Equals(NewMoneyINRFromFloat(5)))
	assert.False(t, NewMoneyINRFromFloat(5).Equals(NewMoneyINRFromFloat(6)))
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := NewMoneyINRFromFloat(2500.75)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out Money
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, m.Equals(out))
}

func TestMoney_ScanDefaultsCurrency(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("99.50"))
	assert.Equal(t, INR, m.Currency())
	assert.Equal(t, "99.50 INR", m.String())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}
