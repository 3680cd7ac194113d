package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

// PricingService provides application-level pricing operations: ad-hoc price
// calculation, usage tracking and read-only pricing analytics.
type PricingService struct {
	contracts pricing.ContractRepository
	rules     pricing.PricingRuleRepository
	usage     pricing.UsageRepository
	calc      *pricing.Calculator
	logger    *zap.Logger
	now       func() time.Time
}

// PricingServiceOption is a functional option for configuring PricingService
type PricingServiceOption func(*PricingService)

// WithPricingClock overrides the time source, for deterministic tests
func WithPricingClock(now func() time.Time) PricingServiceOption {
	return func(s *PricingService) {
		s.now = now
	}
}

// NewPricingService creates a new PricingService
func NewPricingService(
	contracts pricing.ContractRepository,
	rules pricing.PricingRuleRepository,
	usage pricing.UsageRepository,
	calc *pricing.Calculator,
	logger *zap.Logger,
	opts ...PricingServiceOption,
) *PricingService {
	s := &PricingService{
		contracts: contracts,
		rules:     rules,
		usage:     usage,
		calc:      calc,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsageInput describes one incoming usage event
type UsageInput struct {
	ServiceType string
	Quantity    decimal.Decimal
	Unit        string
	UsageDate   time.Time
	Location    string
	Reference   string
	Metadata    map[string]any
}

// CalculateOptions controls an ad-hoc price calculation run
type CalculateOptions struct {
	ApplyDiscounts   bool
	ApplyMinimum     bool
	IncludeSetupFees bool
	Prorated         bool
	EffectiveDate    *time.Time
}

// DefaultCalculateOptions returns the options used when the caller specifies none
func DefaultCalculateOptions() CalculateOptions {
	return CalculateOptions{ApplyDiscounts: true}
}

// PriceQuote is the result of CalculatePrice: per-record breakdowns plus the
// period-level sums and, when requested, the minimum-charge shortfall.
type PriceQuote struct {
	ContractID    uuid.UUID             `json:"contract_id"`
	Currency      string                `json:"currency"`
	Calculations  []pricing.Calculation `json:"calculations"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	TotalDiscount decimal.Decimal       `json:"total_discount"`
	NetAmount     decimal.Decimal       `json:"net_amount"`
	MinimumTopUp  *decimal.Decimal      `json:"minimum_top_up,omitempty"`
}

// CalculatePrice prices a batch of usage records against a contract without
// persisting anything. A missing tier aborts the whole batch: a partially
// priced result would under-bill silently.
func (s *PricingService) CalculatePrice(
	ctx context.Context,
	tenantID, contractID uuid.UUID,
	inputs []UsageInput,
	opts CalculateOptions,
) (*PriceQuote, error) {
	contract, err := s.contracts.FindByIDForTenant(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}

	effective := s.now()
	if opts.EffectiveDate != nil {
		effective = *opts.EffectiveDate
	}

	ruleSet, err := s.loadRules(ctx, tenantID, effective, opts.ApplyDiscounts)
	if err != nil {
		return nil, err
	}

	quote := &PriceQuote{
		ContractID:    contractID,
		Currency:      string(contract.Currency),
		Calculations:  make([]pricing.Calculation, 0, len(inputs)),
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		NetAmount:     decimal.Zero,
	}
	calcOpts := pricing.Options{
		ApplyDiscounts:   opts.ApplyDiscounts,
		IncludeSetupFees: opts.IncludeSetupFees,
		EffectiveDate:    &effective,
	}
	for _, in := range inputs {
		calc, err := s.calc.Calculate(ctx, contract, pricing.CalculationInput{
			ServiceType: in.ServiceType,
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			UsageDate:   usageDateOr(in.UsageDate, effective),
		}, ruleSet, calcOpts)
		if err != nil {
			return nil, err
		}
		quote.Calculations = append(quote.Calculations, *calc)
		quote.Subtotal = quote.Subtotal.Add(calc.Subtotal)
		quote.TotalDiscount = quote.TotalDiscount.Add(calc.TotalDiscount)
		quote.NetAmount = quote.NetAmount.Add(calc.NetAmount)
	}

	if opts.ApplyMinimum && contract.MonthlyMinimum != nil {
		minimum := *contract.MonthlyMinimum
		if opts.Prorated {
			minimum = ProratedMinimum(contract, monthStart(effective), monthEnd(effective))
		}
		if quote.NetAmount.LessThan(minimum) {
			topUp := minimum.Sub(quote.NetAmount)
			quote.MinimumTopUp = &topUp
		}
	}
	return quote, nil
}

// TrackOptions controls usage ingestion
type TrackOptions struct {
	AutoCalculatePrice bool
	ValidateContract   bool
}

// DefaultTrackOptions returns the options used when the caller specifies none
func DefaultTrackOptions() TrackOptions {
	return TrackOptions{AutoCalculatePrice: true, ValidateContract: true}
}

// TrackUsage validates the contract, prices each incoming record and persists
// usage together with its price snapshot. The snapshot is taken at ingestion
// time and is independent of later recomputation during invoicing.
func (s *PricingService) TrackUsage(
	ctx context.Context,
	tenantID, contractID uuid.UUID,
	inputs []UsageInput,
	opts TrackOptions,
) ([]*pricing.UsageRecord, error) {
	if len(inputs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "No usage records provided")
	}

	contract, err := s.contracts.FindByIDForTenant(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if opts.ValidateContract && !contract.IsActiveAt(now) {
		return nil, shared.NewDomainError("INVALID_STATE", "Contract is not active")
	}

	ruleSet, err := s.loadRules(ctx, tenantID, now, opts.AutoCalculatePrice)
	if err != nil {
		return nil, err
	}

	records := make([]*pricing.UsageRecord, 0, len(inputs))
	for _, in := range inputs {
		record, err := pricing.NewUsageRecord(
			tenantID, contractID, contract.CustomerID,
			in.ServiceType, in.Quantity, in.Unit, in.UsageDate,
		)
		if err != nil {
			return nil, err
		}
		record.WithLocation(in.Location).WithReference(in.Reference)
		for k, v := range in.Metadata {
			record.WithMetadata(k, v)
		}

		if opts.AutoCalculatePrice {
			calc, err := s.calc.Calculate(ctx, contract, pricing.CalculationInput{
				ServiceType: record.ServiceType,
				Quantity:    record.Quantity,
				Unit:        record.Unit,
				UsageDate:   record.UsageDate,
			}, ruleSet, pricing.DefaultOptions())
			if err != nil {
				return nil, err
			}
			record.ApplyPricing(calc, now)
		}
		records = append(records, record)
	}

	if err := s.usage.SaveBatch(ctx, records); err != nil {
		return nil, err
	}

	s.logger.Info("usage tracked",
		zap.String("tenant_id", tenantID.String()),
		zap.String("contract_id", contractID.String()),
		zap.Int("records", len(records)),
		zap.Bool("auto_priced", opts.AutoCalculatePrice),
	)
	return records, nil
}

// ListUsage pages through a contract's tracked usage history
func (s *PricingService) ListUsage(
	ctx context.Context,
	tenantID, contractID uuid.UUID,
	filter shared.Filter,
) (shared.Paginated[pricing.UsageRecord], error) {
	if _, err := s.contracts.FindByIDForTenant(ctx, tenantID, contractID); err != nil {
		return shared.Paginated[pricing.UsageRecord]{}, err
	}
	return s.usage.FindByContract(ctx, tenantID, contractID, filter)
}

// ServiceUsage is the per-service rollup in a pricing analysis
type ServiceUsage struct {
	ServiceType string          `json:"service_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	RecordCount int             `json:"record_count"`
}

// TrendPoint is one calendar-month revenue bucket
type TrendPoint struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// PricingAnalysis is a read-only, non-authoritative revenue report built from
// stored price snapshots, not from recomputation.
type PricingAnalysis struct {
	ContractID     uuid.UUID               `json:"contract_id"`
	PeriodStart    time.Time               `json:"period_start"`
	PeriodEnd      time.Time               `json:"period_end"`
	TotalRevenue   decimal.Decimal         `json:"total_revenue"`
	UsageByService map[string]ServiceUsage `json:"usage_by_service"`
	TopServices    []ServiceUsage          `json:"top_services"`
	Trends         []TrendPoint            `json:"trends"`
}

// AnalyzePricing summarizes tracked usage for a contract over a period
func (s *PricingService) AnalyzePricing(
	ctx context.Context,
	tenantID, contractID uuid.UUID,
	periodStart, periodEnd time.Time,
) (*PricingAnalysis, error) {
	if periodEnd.Before(periodStart) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Period end cannot be before period start")
	}
	if _, err := s.contracts.FindByIDForTenant(ctx, tenantID, contractID); err != nil {
		return nil, err
	}

	records, err := s.usage.FindByContractAndPeriod(ctx, tenantID, contractID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	analysis := &PricingAnalysis{
		ContractID:     contractID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TotalRevenue:   decimal.Zero,
		UsageByService: make(map[string]ServiceUsage),
	}
	trendKeys := make(map[[2]int]decimal.Decimal)
	for i := range records {
		r := &records[i]
		analysis.TotalRevenue = analysis.TotalRevenue.Add(r.TotalAmount)

		svc := analysis.UsageByService[r.ServiceType]
		svc.ServiceType = r.ServiceType
		svc.Quantity = svc.Quantity.Add(r.Quantity)
		svc.Revenue = svc.Revenue.Add(r.TotalAmount)
		svc.RecordCount++
		analysis.UsageByService[r.ServiceType] = svc

		key := [2]int{r.UsageDate.Year(), int(r.UsageDate.Month())}
		trendKeys[key] = trendKeys[key].Add(r.TotalAmount)
	}

	for _, svc := range analysis.UsageByService {
		analysis.TopServices = append(analysis.TopServices, svc)
	}
	sort.Slice(analysis.TopServices, func(i, j int) bool {
		return analysis.TopServices[i].Revenue.GreaterThan(analysis.TopServices[j].Revenue)
	})
	if len(analysis.TopServices) > 5 {
		analysis.TopServices = analysis.TopServices[:5]
	}

	for key, revenue := range trendKeys {
		analysis.Trends = append(analysis.Trends, TrendPoint{Year: key[0], Month: key[1], Revenue: revenue})
	}
	sort.Slice(analysis.Trends, func(i, j int) bool {
		if analysis.Trends[i].Year != analysis.Trends[j].Year {
			return analysis.Trends[i].Year < analysis.Trends[j].Year
		}
		return analysis.Trends[i].Month < analysis.Trends[j].Month
	})
	return analysis, nil
}

// loadRules fetches and scope-filters the tenant's rule set when discounts
// are being applied; otherwise returns nil to skip rule evaluation entirely.
func (s *PricingService) loadRules(ctx context.Context, tenantID uuid.UUID, at time.Time, needed bool) ([]pricing.PricingRule, error) {
	if !needed {
		return nil, nil
	}
	ruleSet, err := s.rules.FindActiveForTenant(ctx, tenantID, at)
	if err != nil {
		return nil, err
	}
	return pricing.FilterRulesInScope(ruleSet, at), nil
}

func usageDateOr(d, fallback time.Time) time.Time {
	if d.IsZero() {
		return fallback
	}
	return d
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// ProratedMinimum scales the contract's monthly minimum by the fraction of
// [periodStart, periodEnd] the contract window actually covers.
func ProratedMinimum(contract *pricing.Contract, periodStart, periodEnd time.Time) decimal.Decimal {
	if contract.MonthlyMinimum == nil {
		return decimal.Zero
	}
	minimum := *contract.MonthlyMinimum

	coveredStart := periodStart
	if contract.StartDate.After(coveredStart) {
		coveredStart = contract.StartDate
	}
	coveredEnd := periodEnd
	if contract.EndDate != nil && contract.EndDate.Before(coveredEnd) {
		coveredEnd = *contract.EndDate
	}
	if !coveredEnd.After(coveredStart) {
		return decimal.Zero
	}

	total := periodEnd.Sub(periodStart)
	covered := coveredEnd.Sub(coveredStart)
	if covered >= total {
		return minimum
	}
	fraction := decimal.NewFromInt(int64(covered)).Div(decimal.NewFromInt(int64(total)))
	return minimum.Mul(fraction).Round(2)
}
