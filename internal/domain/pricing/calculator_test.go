package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiserv/billing/internal/domain/shared"
)

type stubSpendProvider struct {
	spend decimal.Decimal
	err   error
}

func (s *stubSpendProvider) MonthlySpend(_ context.Context, _, _ uuid.UUID, _ time.Time) (decimal.Decimal, error) {
	return s.spend, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testContract(tiers PricingTiers) *Contract {
	c := &Contract{
		CustomerID: uuid.New(),
		Status:     ContractStatusActive,
		StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Tiers:      tiers,
	}
	c.TenantAggregateRoot = shared.NewTenantAggregateRoot(uuid.New())
	return c
}

func TestCalculateSeasonalDiscount(t *testing.T) {
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), Unit: "pallet", MinQuantity: dec("0")},
	})
	rules := []PricingRule{{
		Name:       "Summer Discount",
		Type:       RuleTypeSeasonal,
		Conditions: RuleConditions{Months: []int{6, 7, 8}},
		Action:     ActionDiscountPercentage,
		Value:      dec("10"),
		Active:     true,
	}}

	calc := NewCalculator(nil, WithClock(fixedClock(july)))
	result, err := calc.Calculate(context.Background(), contract, CalculationInput{
		ServiceType: "storage",
		Quantity:    dec("100"),
		UsageDate:   july,
	}, rules, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, result.BasePrice.Equal(dec("1000")))
	assert.True(t, result.TotalDiscount.Equal(dec("100")))
	assert.True(t, result.NetAmount.Equal(dec("900")))
	require.Len(t, result.Discounts, 1)
	assert.Equal(t, "Summer Discount", result.Discounts[0].Name)
	assert.Equal(t, []string{"Summer Discount"}, result.AppliedRules)
}

func TestCalculateRuleStacking(t *testing.T) {
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), MinQuantity: dec("0")},
	})
	rules := []PricingRule{
		{
			Name:       "Seasonal",
			Type:       RuleTypeSeasonal,
			Conditions: RuleConditions{Months: []int{7}},
			Action:     ActionDiscountPercentage,
			Value:      dec("10"),
			Active:     true,
			Priority:   1,
		},
		{
			Name:     "Flat Promo",
			Type:     RuleTypePromotional,
			Action:   ActionDiscountFixed,
			Value:    dec("50"),
			Active:   true,
			Priority: 2,
		},
	}

	calc := NewCalculator(nil, WithClock(fixedClock(at)))
	result, err := calc.Calculate(context.Background(), contract, CalculationInput{
		ServiceType: "storage",
		Quantity:    dec("100"),
		UsageDate:   at,
	}, rules, DefaultOptions())
	require.NoError(t, err)

	// Both eligible rules contribute; priority orders them but never
	// short-circuits.
	require.Len(t, result.Discounts, 2)
	assert.True(t, result.TotalDiscount.Equal(dec("150")))
	assert.True(t, result.NetAmount.Equal(dec("850")))
}

func TestCalculateActions(t *testing.T) {
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), MinQuantity: dec("0")},
	})
	calc := NewCalculator(nil, WithClock(fixedClock(at)))
	input := CalculationInput{ServiceType: "storage", Quantity: dec("100"), UsageDate: at}

	run := func(action RuleAction, value decimal.Decimal) *Calculation {
		rules := []PricingRule{{
			Name:   "Rule",
			Type:   RuleTypePromotional,
			Action: action,
			Value:  value,
			Active: true,
		}}
		result, err := calc.Calculate(context.Background(), contract, input, rules, DefaultOptions())
		require.NoError(t, err)
		return result
	}

	t.Run("price_override discounts down to the override value", func(t *testing.T) {
		result := run(ActionPriceOverride, dec("600"))
		assert.True(t, result.TotalDiscount.Equal(dec("400")))
		assert.True(t, result.NetAmount.Equal(dec("600")))
	})

	t.Run("price_override above base contributes nothing", func(t *testing.T) {
		result := run(ActionPriceOverride, dec("2000"))
		assert.Empty(t, result.Discounts)
		assert.True(t, result.NetAmount.Equal(dec("1000")))
	})

	t.Run("waive_fee zeroes the charge", func(t *testing.T) {
		result := run(ActionWaiveFee, decimal.Zero)
		assert.True(t, result.NetAmount.IsZero())
	})

	t.Run("fixed discount larger than base floors net at zero", func(t *testing.T) {
		result := run(ActionDiscountFixed, dec("5000"))
		assert.True(t, result.NetAmount.IsZero())
	})

	t.Run("zero-value percentage is dropped from the breakdown", func(t *testing.T) {
		result := run(ActionDiscountPercentage, decimal.Zero)
		assert.Empty(t, result.Discounts)
		assert.Equal(t, []string{"Rule"}, result.AppliedRules)
		assert.True(t, result.NetAmount.Equal(dec("1000")))
	})
}

func TestCalculateVolumeDiscount(t *testing.T) {
	at := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), MinQuantity: dec("0")},
	})
	rules := []PricingRule{{
		Name:       "Big Spender",
		Type:       RuleTypeVolumeDiscount,
		Conditions: RuleConditions{MinMonthlySpend: decPtr("5000")},
		Action:     ActionDiscountPercentage,
		Value:      dec("5"),
		Active:     true,
	}}
	input := CalculationInput{ServiceType: "storage", Quantity: dec("100"), UsageDate: at}

	t.Run("eligible when spend meets the threshold", func(t *testing.T) {
		calc := NewCalculator(&stubSpendProvider{spend: dec("6000")}, WithClock(fixedClock(at)))
		result, err := calc.Calculate(context.Background(), contract, input, rules, DefaultOptions())
		require.NoError(t, err)
		assert.True(t, result.TotalDiscount.Equal(dec("50")))
	})

	t.Run("ineligible below the threshold", func(t *testing.T) {
		calc := NewCalculator(&stubSpendProvider{spend: dec("4999.99")}, WithClock(fixedClock(at)))
		result, err := calc.Calculate(context.Background(), contract, input, rules, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, result.Discounts)
	})

	t.Run("never matches without a spend provider", func(t *testing.T) {
		calc := NewCalculator(nil, WithClock(fixedClock(at)))
		result, err := calc.Calculate(context.Background(), contract, input, rules, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, result.Discounts)
	})
}

func TestCalculateLoyaltyAndTimeBased(t *testing.T) {
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), MinQuantity: dec("0")},
	})

	t.Run("loyalty counts whole contract months", func(t *testing.T) {
		rules := []PricingRule{{
			Name:       "Anniversary",
			Type:       RuleTypeLoyalty,
			Conditions: RuleConditions{MinContractMonths: intPtr(12)},
			Action:     ActionDiscountPercentage,
			Value:      dec("3"),
			Active:     true,
		}}
		early := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
		calc := NewCalculator(nil, WithClock(fixedClock(early)))
		result, err := calc.Calculate(context.Background(), contract,
			CalculationInput{ServiceType: "storage", Quantity: dec("10"), UsageDate: early}, rules, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, result.Discounts)

		anniversary := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		calc = NewCalculator(nil, WithClock(fixedClock(anniversary)))
		result, err = calc.Calculate(context.Background(), contract,
			CalculationInput{ServiceType: "storage", Quantity: dec("10"), UsageDate: anniversary}, rules, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, result.Discounts, 1)
	})

	t.Run("time_based matches the usage hour", func(t *testing.T) {
		rules := []PricingRule{{
			Name:       "Off Peak",
			Type:       RuleTypeTimeBased,
			Conditions: RuleConditions{Hours: []int{22, 23, 0, 1}},
			Action:     ActionDiscountPercentage,
			Value:      dec("15"),
			Active:     true,
		}}
		calc := NewCalculator(nil)

		night := CalculationInput{ServiceType: "storage", Quantity: dec("10"),
			UsageDate: time.Date(2025, 4, 1, 23, 30, 0, 0, time.UTC)}
		result, err := calc.Calculate(context.Background(), contract, night, rules, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, result.Discounts, 1)

		noon := CalculationInput{ServiceType: "storage", Quantity: dec("10"),
			UsageDate: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)}
		result, err = calc.Calculate(context.Background(), contract, noon, rules, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, result.Discounts)
	})
}

func TestCalculateOptions(t *testing.T) {
	contract := testContract(PricingTiers{
		{ServiceName: "storage", UnitPrice: dec("10"), MinQuantity: dec("0"),
			DiscountPercentage: decPtr("20"), SetupFee: decPtr("25")},
	})
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	input := CalculationInput{ServiceType: "storage", Quantity: dec("100"), UsageDate: at}
	calc := NewCalculator(nil, WithClock(fixedClock(at)))

	t.Run("tier discount applies against base price", func(t *testing.T) {
		result, err := calc.Calculate(context.Background(), contract, input, nil, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, result.Discounts, 1)
		assert.Equal(t, "Tier Discount", result.Discounts[0].Name)
		assert.True(t, result.TotalDiscount.Equal(dec("200")))
		assert.True(t, result.NetAmount.Equal(dec("800")))
	})

	t.Run("ApplyDiscounts false skips tiers and rules", func(t *testing.T) {
		result, err := calc.Calculate(context.Background(), contract, input, nil, Options{})
		require.NoError(t, err)
		assert.Empty(t, result.Discounts)
		assert.True(t, result.NetAmount.Equal(dec("1000")))
	})

	t.Run("setup fee is added to the subtotal when requested", func(t *testing.T) {
		result, err := calc.Calculate(context.Background(), contract, input,
			nil, Options{IncludeSetupFees: true})
		require.NoError(t, err)
		assert.True(t, result.Subtotal.Equal(dec("1025")))
	})

	t.Run("unresolvable service type aborts the calculation", func(t *testing.T) {
		_, err := calc.Calculate(context.Background(), contract,
			CalculationInput{ServiceType: "transport", Quantity: dec("1"), UsageDate: at}, nil, DefaultOptions())
		assert.Error(t, err)
	})
}
