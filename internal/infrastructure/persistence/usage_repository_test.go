package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

func testRecord(t *testing.T, tenantID, contractID, customerID uuid.UUID, service, qty string, date time.Time, total string) *pricing.UsageRecord {
	t.Helper()
	r, err := pricing.NewUsageRecord(tenantID, contractID, customerID, service, dec(qty), "unit", date)
	require.NoError(t, err)
	r.TotalAmount = dec(total)
	return r
}

func TestGormUsageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUsageRepository(openTestDB(t))

	tenantID := uuid.New()
	contractID := uuid.New()
	customerID := uuid.New()

	july10 := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	july20 := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	aug5 := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveBatch(ctx, []*pricing.UsageRecord{
		testRecord(t, tenantID, contractID, customerID, "storage", "100", july20, "900"),
		testRecord(t, tenantID, contractID, customerID, "handling", "40", july10, "100"),
		testRecord(t, tenantID, contractID, customerID, "storage", "50", aug5, "450"),
		testRecord(t, tenantID, uuid.New(), uuid.New(), "storage", "10", july10, "100"),
	}))

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.SaveBatch(ctx, nil))
	})

	t.Run("finds a contract's usage in period, oldest first", func(t *testing.T) {
		records, err := repo.FindByContractAndPeriod(ctx, tenantID, contractID,
			time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "handling", records[0].ServiceType)
		assert.Equal(t, "storage", records[1].ServiceType)
	})

	t.Run("period bounds are inclusive", func(t *testing.T) {
		records, err := repo.FindByContractAndPeriod(ctx, tenantID, contractID, july10, july20)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("sums the calendar month's spend per customer", func(t *testing.T) {
		spend, err := repo.SumMonthlySpend(ctx, tenantID, customerID,
			time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, spend.Equal(dec("1000")))

		spend, err = repo.SumMonthlySpend(ctx, tenantID, customerID, aug5)
		require.NoError(t, err)
		assert.True(t, spend.Equal(dec("450")))
	})

	t.Run("no usage sums to zero", func(t *testing.T) {
		spend, err := repo.SumMonthlySpend(ctx, tenantID, uuid.New(), july10)
		require.NoError(t, err)
		assert.True(t, spend.IsZero())
	})

	t.Run("MonthlySpend mirrors SumMonthlySpend", func(t *testing.T) {
		spend, err := repo.MonthlySpend(ctx, tenantID, customerID, july10)
		require.NoError(t, err)
		assert.True(t, spend.Equal(dec("1000")))
	})

	t.Run("pages the contract's history", func(t *testing.T) {
		filter := shared.Filter{Page: 1, PageSize: 2, OrderBy: "usage_date", OrderDir: "asc"}
		page, err := repo.FindByContract(ctx, tenantID, contractID, filter)
		require.NoError(t, err)

		assert.EqualValues(t, 3, page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 2)
		assert.Equal(t, july10, page.Items[0].UsageDate.UTC())

		filter.Page = 2
		page, err = repo.FindByContract(ctx, tenantID, contractID, filter)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, aug5, page.Items[0].UsageDate.UTC())
	})

	t.Run("filters by service type search", func(t *testing.T) {
		page, err := repo.FindByContract(ctx, tenantID, contractID, shared.Filter{Search: "hand"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "handling", page.Items[0].ServiceType)
	})

	t.Run("unknown order column falls back safely", func(t *testing.T) {
		_, err := repo.FindByContract(ctx, tenantID, contractID,
			shared.Filter{OrderBy: "total_amount; DROP TABLE usage_records"})
		assert.NoError(t, err)
	})
}
