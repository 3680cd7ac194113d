package invoicing

import (
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/pricing"
)

var oneHundred = decimal.NewFromInt(100)

// BuildLineItems groups per-record calculations by service type into invoice
// line items, preserving first-seen order. Quantity, subtotal, discount and
// net are sums; unit price is the weighted average subtotal/quantity.
func BuildLineItems(calcs []pricing.Calculation, taxRate decimal.Decimal) LineItems {
	var order []string
	groups := make(map[string][]*pricing.Calculation)
	for i := range calcs {
		svc := calcs[i].ServiceType
		if _, ok := groups[svc]; !ok {
			order = append(order, svc)
		}
		groups[svc] = append(groups[svc], &calcs[i])
	}

	items := make(LineItems, 0, len(order))
	for _, svc := range order {
		item := LineItem{
			ServiceType:    svc,
			Description:    svc,
			Quantity:       decimal.Zero,
			Subtotal:       decimal.Zero,
			DiscountAmount: decimal.Zero,
			NetAmount:      decimal.Zero,
		}
		for _, c := range groups[svc] {
			if item.Unit == "" {
				item.Unit = c.Unit
			}
			item.Quantity = item.Quantity.Add(c.Quantity)
			item.Subtotal = item.Subtotal.Add(c.Subtotal)
			item.DiscountAmount = item.DiscountAmount.Add(c.TotalDiscount)
			item.NetAmount = item.NetAmount.Add(c.NetAmount)
		}
		if item.Quantity.IsPositive() {
			item.UnitPrice = item.Subtotal.Div(item.Quantity)
		}
		item.TaxAmount = item.NetAmount.Mul(taxRate).Div(oneHundred)
		items = append(items, item)
	}
	return items
}

// Totals sums line items into the period subtotal, total discount and
// taxable amount. The synthetic minimum line, if present, is excluded from
// subtotal/discount because it is not usage.
func Totals(items LineItems) (subtotal, totalDiscount, taxable decimal.Decimal) {
	subtotal = decimal.Zero
	totalDiscount = decimal.Zero
	for _, item := range items {
		if item.ServiceType == MonthlyMinimumService {
			continue
		}
		subtotal = subtotal.Add(item.Subtotal)
		totalDiscount = totalDiscount.Add(item.DiscountAmount)
	}
	taxable = subtotal.Sub(totalDiscount)
	return subtotal, totalDiscount, taxable
}

// ApplyMonthlyMinimum appends the "Monthly Minimum Charge" top-up line when
// the period's taxable amount falls short of the contractual minimum, and
// returns the final taxable amount. It must run after all real line items are
// built, never before. The top-up amount is exactly minimum - taxable.
func ApplyMonthlyMinimum(items LineItems, taxable, minimum, taxRate decimal.Decimal) (LineItems, decimal.Decimal) {
	if taxable.GreaterThanOrEqual(minimum) {
		return items, taxable
	}
	shortfall := minimum.Sub(taxable)
	items = append(items, LineItem{
		ServiceType:    MonthlyMinimumService,
		Description:    "Monthly Minimum Charge",
		Quantity:       decimal.NewFromInt(1),
		Unit:           "charge",
		UnitPrice:      shortfall,
		Subtotal:       shortfall,
		DiscountAmount: decimal.Zero,
		NetAmount:      shortfall,
		TaxAmount:      shortfall.Mul(taxRate).Div(oneHundred),
	})
	return items, minimum
}

// SummarizeDiscounts aggregates per-record discounts by name for the
// invoice-level applied-discounts report
func SummarizeDiscounts(calcs []pricing.Calculation) AppliedDiscounts {
	var order []string
	byName := make(map[string]decimal.Decimal)
	for i := range calcs {
		for _, d := range calcs[i].Discounts {
			if _, ok := byName[d.Name]; !ok {
				order = append(order, d.Name)
			}
			byName[d.Name] = byName[d.Name].Add(d.Amount)
		}
	}
	result := make(AppliedDiscounts, 0, len(order))
	for _, name := range order {
		result = append(result, AppliedDiscount{Name: name, Amount: byName[name]})
	}
	return result
}

// SummarizeByService builds the per-service rollup for reporting
func SummarizeByService(calcs []pricing.Calculation) map[string]ServiceSummary {
	result := make(map[string]ServiceSummary)
	for i := range calcs {
		c := &calcs[i]
		s := result[c.ServiceType]
		s.Quantity = s.Quantity.Add(c.Quantity)
		s.Subtotal = s.Subtotal.Add(c.Subtotal)
		s.NetAmount = s.NetAmount.Add(c.NetAmount)
		s.RecordCount++
		result[c.ServiceType] = s
	}
	return result
}
