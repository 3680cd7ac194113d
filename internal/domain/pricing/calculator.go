package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Discount is one named reduction applied to a usage record's price.
// Name and reason are retained for audit/explainability; multiple discounts
// are never collapsed into one opaque number.
type Discount struct {
	Name       string           `json:"name"`
	Amount     decimal.Decimal  `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Reason     string           `json:"reason"`
}

// TierInfo describes the tier a calculation resolved to
type TierInfo struct {
	ServiceName string           `json:"service_name"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Unit        string           `json:"unit"`
	MinQuantity decimal.Decimal  `json:"min_quantity"`
	MaxQuantity *decimal.Decimal `json:"max_quantity,omitempty"`
}

// Calculation is the per-record price breakdown. It is derived, never
// persisted as its own entity.
type Calculation struct {
	ServiceType   string          `json:"service_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	BasePrice     decimal.Decimal `json:"base_price"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discounts     []Discount      `json:"discounts"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	AppliedRules  []string        `json:"applied_rules"`
	Tier          TierInfo        `json:"tier_info"`
}

// CalculationInput identifies the usage being priced
type CalculationInput struct {
	ServiceType string
	Quantity    decimal.Decimal
	Unit        string
	UsageDate   time.Time
}

// Options controls a calculation run
type Options struct {
	ApplyDiscounts   bool
	IncludeSetupFees bool
	EffectiveDate    *time.Time
}

// DefaultOptions returns the options used for normal ingestion pricing
func DefaultOptions() Options {
	return Options{ApplyDiscounts: true}
}

// MonthlySpendProvider reports a customer's cumulative spend for the calendar
// month containing the given time. Used only by volume_discount eligibility.
type MonthlySpendProvider interface {
	MonthlySpend(ctx context.Context, tenantID, customerID uuid.UUID, at time.Time) (decimal.Decimal, error)
}

// Calculator is the domain service that turns a usage record into a price
// breakdown: tier resolution, tier discount, then stacked rule discounts.
// It is stateless and safe for concurrent use.
type Calculator struct {
	spend MonthlySpendProvider
	now   func() time.Time
}

// CalculatorOption is a functional option for configuring Calculator
type CalculatorOption func(*Calculator)

// WithClock overrides the time source, for deterministic tests
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a calculator. spend may be nil, in which case
// volume_discount rules never match.
func NewCalculator(spend MonthlySpendProvider, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		spend: spend,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate prices one usage record against a contract's tiers and the
// in-scope rule set. The rule slice should already be scope-filtered via
// FilterRulesInScope; eligibility is still checked per record here.
func (c *Calculator) Calculate(
	ctx context.Context,
	contract *Contract,
	input CalculationInput,
	rules []PricingRule,
	opts Options,
) (*Calculation, error) {
	tier, err := ResolveTier(input.ServiceType, input.Quantity, contract.Tiers)
	if err != nil {
		return nil, err
	}

	basePrice := tier.UnitPrice.Mul(input.Quantity)
	subtotal := basePrice
	if opts.IncludeSetupFees && tier.SetupFee != nil {
		subtotal = subtotal.Add(*tier.SetupFee)
	}

	unit := input.Unit
	if unit == "" {
		unit = tier.Unit
	}

	calc := &Calculation{
		ServiceType:   input.ServiceType,
		Quantity:      input.Quantity,
		Unit:          unit,
		BasePrice:     basePrice,
		UnitPrice:     tier.UnitPrice,
		Subtotal:      subtotal,
		Discounts:     []Discount{},
		TotalDiscount: decimal.Zero,
		AppliedRules:  []string{},
		Tier: TierInfo{
			ServiceName: tier.ServiceName,
			UnitPrice:   tier.UnitPrice,
			Unit:        tier.Unit,
			MinQuantity: tier.MinQuantity,
			MaxQuantity: tier.MaxQuantity,
		},
	}

	if opts.ApplyDiscounts {
		if tier.DiscountPercentage != nil && tier.DiscountPercentage.IsPositive() {
			pct := *tier.DiscountPercentage
			calc.Discounts = append(calc.Discounts, Discount{
				Name:       "Tier Discount",
				Amount:     basePrice.Mul(pct).Div(oneHundred),
				Percentage: &pct,
				Reason:     fmt.Sprintf("%s%% discount on tier %q", pct.String(), tier.ServiceName),
			})
		}

		at := c.now()
		if opts.EffectiveDate != nil {
			at = *opts.EffectiveDate
		}
		ruleDiscounts, applied, err := c.evaluateRules(ctx, contract, input, basePrice, rules, at)
		if err != nil {
			return nil, err
		}
		calc.Discounts = append(calc.Discounts, ruleDiscounts...)
		calc.AppliedRules = applied
	}

	// Zero-amount discounts are dropped from the result but do not block
	// other rules from contributing.
	kept := calc.Discounts[:0]
	total := decimal.Zero
	for _, d := range calc.Discounts {
		if d.Amount.IsZero() {
			continue
		}
		kept = append(kept, d)
		total = total.Add(d.Amount)
	}
	calc.Discounts = kept
	calc.TotalDiscount = total

	calc.NetAmount = calc.Subtotal.Sub(total)
	if calc.NetAmount.IsNegative() {
		calc.NetAmount = decimal.Zero
	}
	return calc, nil
}

// evaluateRules checks eligibility for every in-scope rule and computes its
// discount against the record's base price. All eligible rules stack; the
// priority field only orders evaluation, it never short-circuits. That is a
// deliberate behavior of the billing contract and must not change.
func (c *Calculator) evaluateRules(
	ctx context.Context,
	contract *Contract,
	input CalculationInput,
	basePrice decimal.Decimal,
	rules []PricingRule,
	at time.Time,
) ([]Discount, []string, error) {
	var discounts []Discount
	var applied []string

	for i := range rules {
		rule := &rules[i]
		eligible, err := c.isEligible(ctx, rule, contract, input, at)
		if err != nil {
			return nil, nil, err
		}
		if !eligible {
			continue
		}
		d := ruleDiscount(rule, basePrice)
		discounts = append(discounts, d)
		applied = append(applied, rule.Name)
	}
	return discounts, applied, nil
}

// isEligible applies the type-specific eligibility predicate for one rule
func (c *Calculator) isEligible(
	ctx context.Context,
	rule *PricingRule,
	contract *Contract,
	input CalculationInput,
	at time.Time,
) (bool, error) {
	switch rule.Type {
	case RuleTypeVolumeDiscount:
		if rule.Conditions.MinMonthlySpend == nil || c.spend == nil {
			return false, nil
		}
		spend, err := c.spend.MonthlySpend(ctx, contract.TenantID, contract.CustomerID, at)
		if err != nil {
			return false, fmt.Errorf("failed to fetch monthly spend: %w", err)
		}
		return spend.GreaterThanOrEqual(*rule.Conditions.MinMonthlySpend), nil

	case RuleTypeLoyalty:
		if rule.Conditions.MinContractMonths == nil {
			return false, nil
		}
		return contract.MonthsSinceStart(at) >= *rule.Conditions.MinContractMonths, nil

	case RuleTypeSeasonal:
		month := int(input.UsageDate.Month())
		for _, m := range rule.Conditions.Months {
			if m == month {
				return true, nil
			}
		}
		return false, nil

	case RuleTypeTimeBased:
		hour := input.UsageDate.Hour()
		for _, h := range rule.Conditions.Hours {
			if h == hour {
				return true, nil
			}
		}
		return false, nil

	case RuleTypeServiceBundle, RuleTypePromotional:
		// Unconditional when in scope; bundle composition is an extension point.
		return true, nil
	}
	return false, nil
}

// ruleDiscount computes the discount an eligible rule contributes against the
// record's base price
func ruleDiscount(rule *PricingRule, basePrice decimal.Decimal) Discount {
	d := Discount{
		Name:   rule.Name,
		Reason: fmt.Sprintf("%s rule %q", rule.Type, rule.Name),
	}
	switch rule.Action {
	case ActionDiscountPercentage:
		pct := rule.Value
		d.Amount = basePrice.Mul(pct).Div(oneHundred)
		d.Percentage = &pct
	case ActionDiscountFixed:
		d.Amount = rule.Value
	case ActionPriceOverride:
		d.Amount = basePrice.Sub(rule.Value)
		if d.Amount.IsNegative() {
			d.Amount = decimal.Zero
		}
	case ActionWaiveFee:
		d.Amount = basePrice
	}
	return d
}
