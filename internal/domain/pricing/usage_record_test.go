package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageRecord(t *testing.T) {
	tenantID := uuid.New()
	contractID := uuid.New()
	customerID := uuid.New()
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates an unpriced record", func(t *testing.T) {
		r, err := NewUsageRecord(tenantID, contractID, customerID, "storage", dec("100"), "pallet", date)
		require.NoError(t, err)
		assert.False(t, r.IsPriced())
		assert.True(t, r.TotalAmount.IsZero())
		assert.NotEqual(t, uuid.Nil, r.ID)
	})

	t.Run("defaults a zero usage date to now", func(t *testing.T) {
		r, err := NewUsageRecord(tenantID, contractID, customerID, "storage", dec("1"), "pallet", time.Time{})
		require.NoError(t, err)
		assert.False(t, r.UsageDate.IsZero())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewUsageRecord(uuid.Nil, contractID, customerID, "storage", dec("1"), "pallet", date)
		assert.Error(t, err)
		_, err = NewUsageRecord(tenantID, uuid.Nil, customerID, "storage", dec("1"), "pallet", date)
		assert.Error(t, err)
		_, err = NewUsageRecord(tenantID, contractID, customerID, "", dec("1"), "pallet", date)
		assert.Error(t, err)
		_, err = NewUsageRecord(tenantID, contractID, customerID, "storage", dec("-1"), "pallet", date)
		assert.Error(t, err)
	})

	t.Run("builder helpers attach context", func(t *testing.T) {
		r, err := NewUsageRecord(tenantID, contractID, customerID, "storage", dec("1"), "pallet", date)
		require.NoError(t, err)
		r.WithLocation("warehouse-a").WithReference("ASN-42").WithMetadata("zone", "cold")
		assert.Equal(t, "warehouse-a", r.Location)
		assert.Equal(t, "ASN-42", r.Reference)
		assert.Equal(t, "cold", r.Metadata["zone"])
	})
}

func TestApplyPricing(t *testing.T) {
	r, err := NewUsageRecord(uuid.New(), uuid.New(), uuid.New(), "storage", dec("100"), "pallet",
		time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	pricedAt := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	r.ApplyPricing(&Calculation{
		UnitPrice:     dec("10"),
		Subtotal:      dec("1000"),
		TotalDiscount: dec("100"),
		NetAmount:     dec("900"),
	}, pricedAt)

	assert.True(t, r.IsPriced())
	assert.True(t, r.UnitPrice.Equal(dec("10")))
	assert.True(t, r.TotalAmount.Equal(dec("900")))
	require.NotNil(t, r.PricedAt)
	assert.Equal(t, pricedAt, *r.PricedAt)
}

func TestIsInPeriod(t *testing.T) {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 23, 59, 59, 0, time.UTC)

	r := &UsageRecord{UsageDate: start}
	assert.True(t, r.IsInPeriod(start, end))

	r.UsageDate = end
	assert.True(t, r.IsInPeriod(start, end))

	r.UsageDate = start.Add(-time.Second)
	assert.False(t, r.IsInPeriod(start, end))

	r.UsageDate = end.Add(time.Second)
	assert.False(t, r.IsInPeriod(start, end))
}

func TestMetadataValueScan(t *testing.T) {
	m := Metadata{"zone": "cold", "racks": float64(3)}

	v, err := m.Value()
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, back.Scan(v))
	assert.Equal(t, m, back)

	var nilScan Metadata
	require.NoError(t, nilScan.Scan(nil))
	assert.Empty(t, nilScan)

	assert.Error(t, back.Scan(42))
}
