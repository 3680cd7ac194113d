package invoicing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiserv/billing/internal/domain/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func calcFor(service string, qty, subtotal, discount, net string) pricing.Calculation {
	return pricing.Calculation{
		ServiceType:   service,
		Quantity:      dec(qty),
		Unit:          "unit",
		Subtotal:      dec(subtotal),
		TotalDiscount: dec(discount),
		NetAmount:     dec(net),
	}
}

func TestBuildLineItems(t *testing.T) {
	taxRate := dec("20")

	t.Run("groups by service type in first-seen order", func(t *testing.T) {
		calcs := []pricing.Calculation{
			calcFor("storage", "100", "1000", "100", "900"),
			calcFor("handling", "40", "100", "0", "100"),
			calcFor("storage", "50", "400", "0", "400"),
		}

		items := BuildLineItems(calcs, taxRate)
		require.Len(t, items, 2)

		storage := items[0]
		assert.Equal(t, "storage", storage.ServiceType)
		assert.True(t, storage.Quantity.Equal(dec("150")))
		assert.True(t, storage.Subtotal.Equal(dec("1400")))
		assert.True(t, storage.DiscountAmount.Equal(dec("100")))
		assert.True(t, storage.NetAmount.Equal(dec("1300")))
		// Weighted average, not the average of per-record unit prices.
		assert.True(t, storage.UnitPrice.Equal(dec("1400").Div(dec("150"))))
		assert.True(t, storage.TaxAmount.Equal(dec("260")))

		assert.Equal(t, "handling", items[1].ServiceType)
	})

	t.Run("zero quantity leaves unit price zero", func(t *testing.T) {
		items := BuildLineItems([]pricing.Calculation{
			calcFor("storage", "0", "0", "0", "0"),
		}, taxRate)
		require.Len(t, items, 1)
		assert.True(t, items[0].UnitPrice.IsZero())
	})

	t.Run("no calculations yields no items", func(t *testing.T) {
		assert.Empty(t, BuildLineItems(nil, taxRate))
	})
}

func TestTotals(t *testing.T) {
	items := LineItems{
		{ServiceType: "storage", Subtotal: dec("1000"), DiscountAmount: dec("100"), NetAmount: dec("900")},
		{ServiceType: "handling", Subtotal: dec("500"), DiscountAmount: dec("0"), NetAmount: dec("500")},
	}

	subtotal, totalDiscount, taxable := Totals(items)
	assert.True(t, subtotal.Equal(dec("1500")))
	assert.True(t, totalDiscount.Equal(dec("100")))
	assert.True(t, taxable.Equal(dec("1400")))

	t.Run("minimum top-up line is not usage", func(t *testing.T) {
		withMin := append(items, LineItem{
			ServiceType: MonthlyMinimumService,
			Subtotal:    dec("600"),
			NetAmount:   dec("600"),
		})
		subtotal, totalDiscount, taxable := Totals(withMin)
		assert.True(t, subtotal.Equal(dec("1500")))
		assert.True(t, totalDiscount.Equal(dec("100")))
		assert.True(t, taxable.Equal(dec("1400")))
	})
}

func TestApplyMonthlyMinimum(t *testing.T) {
	taxRate := dec("10")

	t.Run("tops up a shortfall", func(t *testing.T) {
		items := LineItems{{ServiceType: "storage", NetAmount: dec("3000")}}

		result, finalTaxable := ApplyMonthlyMinimum(items, dec("3000"), dec("5000"), taxRate)
		require.Len(t, result, 2)

		minLine := result[1]
		assert.Equal(t, MonthlyMinimumService, minLine.ServiceType)
		assert.Equal(t, "Monthly Minimum Charge", minLine.Description)
		assert.True(t, minLine.NetAmount.Equal(dec("2000")))
		assert.True(t, minLine.TaxAmount.Equal(dec("200")))
		assert.True(t, finalTaxable.Equal(dec("5000")))
	})

	t.Run("no line when the minimum is met", func(t *testing.T) {
		items := LineItems{{ServiceType: "storage", NetAmount: dec("5000")}}

		result, finalTaxable := ApplyMonthlyMinimum(items, dec("5000"), dec("5000"), taxRate)
		assert.Len(t, result, 1)
		assert.True(t, finalTaxable.Equal(dec("5000")))
	})

	t.Run("empty period is topped up to the full minimum", func(t *testing.T) {
		result, finalTaxable := ApplyMonthlyMinimum(nil, decimal.Zero, dec("1500"), taxRate)
		require.Len(t, result, 1)
		assert.True(t, result[0].NetAmount.Equal(dec("1500")))
		assert.True(t, finalTaxable.Equal(dec("1500")))
	})
}

func TestSummarizeDiscounts(t *testing.T) {
	calcs := []pricing.Calculation{
		{Discounts: []pricing.Discount{
			{Name: "Summer Discount", Amount: dec("100")},
			{Name: "Loyalty", Amount: dec("30")},
		}},
		{Discounts: []pricing.Discount{
			{Name: "Summer Discount", Amount: dec("40")},
		}},
	}

	discounts := SummarizeDiscounts(calcs)
	require.Len(t, discounts, 2)
	assert.Equal(t, "Summer Discount", discounts[0].Name)
	assert.True(t, discounts[0].Amount.Equal(dec("140")))
	assert.Equal(t, "Loyalty", discounts[1].Name)
	assert.True(t, discounts[1].Amount.Equal(dec("30")))
}

func TestSummarizeByService(t *testing.T) {
	calcs := []pricing.Calculation{
		calcFor("storage", "100", "1000", "100", "900"),
		calcFor("storage", "50", "400", "0", "400"),
		calcFor("handling", "40", "100", "0", "100"),
	}

	summary := SummarizeByService(calcs)
	require.Len(t, summary, 2)
	assert.Equal(t, 2, summary["storage"].RecordCount)
	assert.True(t, summary["storage"].NetAmount.Equal(dec("1300")))
	assert.Equal(t, 1, summary["handling"].RecordCount)
}
