package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

func TestNewContract(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates a draft contract with defaults", func(t *testing.T) {
		c, err := NewContract(tenantID, "CT-2025-001", customerID, "", start, nil)
		require.NoError(t, err)
		assert.Equal(t, ContractStatusDraft, c.Status)
		assert.Equal(t, valueobject.DefaultCurrency, c.Currency)
		assert.Equal(t, 30, c.PaymentTermDays)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := NewContract(uuid.Nil, "CT-1", customerID, "USD", start, nil)
		assert.Error(t, err)
		_, err = NewContract(tenantID, "CT-1", uuid.Nil, "USD", start, nil)
		assert.Error(t, err)
		_, err = NewContract(tenantID, "", customerID, "USD", start, nil)
		assert.Error(t, err)
	})
}

func TestContractIsActiveAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	contract := &Contract{Status: ContractStatusActive, StartDate: start, EndDate: &end}

	assert.True(t, contract.IsActiveAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, contract.IsActiveAt(start.Add(-time.Hour)))
	assert.False(t, contract.IsActiveAt(end.Add(time.Hour)))

	contract.Status = ContractStatusSuspended
	assert.False(t, contract.IsActiveAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	open := &Contract{Status: ContractStatusActive, StartDate: start}
	assert.True(t, open.IsActiveAt(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestContractMonthsSinceStart(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	contract := &Contract{StartDate: start}

	t.Run("zero before start", func(t *testing.T) {
		assert.Equal(t, 0, contract.MonthsSinceStart(start.AddDate(0, 0, -1)))
	})

	t.Run("counts only whole months", func(t *testing.T) {
		assert.Equal(t, 0, contract.MonthsSinceStart(time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 1, contract.MonthsSinceStart(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 11, contract.MonthsSinceStart(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 12, contract.MonthsSinceStart(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))
	})
}

func TestMatchesService(t *testing.T) {
	tier := PricingTier{ServiceName: "Storage"}

	assert.True(t, tier.MatchesService("storage"))
	assert.True(t, tier.MatchesService("cold-storage-rack"))
	assert.True(t, tier.MatchesService("STOR"))
	assert.False(t, tier.MatchesService("handling"))
	assert.False(t, tier.MatchesService(""))

	empty := PricingTier{ServiceName: ""}
	assert.False(t, empty.MatchesService("storage"))
}
