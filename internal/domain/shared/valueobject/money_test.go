package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromInt(100), USD)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromInt(100)))
		assert.Equal(t, USD, m.Currency())
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})

	t.Run("from string", func(t *testing.T) {
		m, err := NewMoneyFromString("19.99", EUR)
		require.NoError(t, err)
		assert.Equal(t, "19.99", m.StringFixed(2))
	})

	t.Run("rejects malformed string", func(t *testing.T) {
		_, err := NewMoneyFromString("nineteen", EUR)
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	hundred := MustMoney(decimal.NewFromInt(100), USD)
	fifty := MustMoney(decimal.NewFromInt(50), USD)

	t.Run("add", func(t *testing.T) {
		sum, err := hundred.Add(fifty)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(150)))
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := hundred.Subtract(fifty)
		require.NoError(t, err)
		assert.True(t, diff.Amount().Equal(decimal.NewFromInt(50)))
	})

	t.Run("mismatched currencies are rejected", func(t *testing.T) {
		euros := MustMoney(decimal.NewFromInt(50), EUR)
		_, err := hundred.Add(euros)
		assert.Error(t, err)
		_, err = hundred.Subtract(euros)
		assert.Error(t, err)
		_, err = hundred.LessThan(euros)
		assert.Error(t, err)
	})

	t.Run("multiply", func(t *testing.T) {
		doubled := fifty.Multiply(decimal.NewFromInt(2))
		assert.True(t, doubled.Equals(hundred))
	})

	t.Run("negate", func(t *testing.T) {
		neg := fifty.Negate()
		assert.True(t, neg.IsNegative())
		assert.True(t, neg.Negate().Equals(fifty))
	})
}

func TestMoneyPercentages(t *testing.T) {
	base := MustMoney(decimal.NewFromInt(200), USD)

	t.Run("calculate percentage", func(t *testing.T) {
		tenPct := base.CalculatePercentage(decimal.NewFromInt(10))
		assert.True(t, tenPct.Amount().Equal(decimal.NewFromInt(20)))
	})

	t.Run("apply discount", func(t *testing.T) {
		discounted := base.ApplyDiscount(decimal.NewFromInt(25))
		assert.True(t, discounted.Amount().Equal(decimal.NewFromInt(150)))
	})
}

func TestMoneyRounding(t *testing.T) {
	m := MustMoney(decimal.RequireFromString("10.555"), USD)
	assert.Equal(t, "10.56", m.Round(2).StringFixed(2))

	bank := MustMoney(decimal.RequireFromString("10.565"), USD)
	assert.Equal(t, "10.56", bank.RoundBank(2).StringFixed(2))
}

func TestMoneyJSON(t *testing.T) {
	m := MustMoney(decimal.RequireFromString("42.5"), GBP)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"42.5","currency":"GBP"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))
}

func TestMoneyScan(t *testing.T) {
	t.Run("scans string amount", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan("12.34"))
		assert.Equal(t, "12.34", m.StringFixed(2))
		assert.Equal(t, DefaultCurrency, m.Currency())
	})

	t.Run("nil becomes zero", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})
}
