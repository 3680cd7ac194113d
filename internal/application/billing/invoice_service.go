package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/logiserv/billing/internal/domain/invoicing"
	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

// BillingDefaults carries tenant-independent billing configuration
type BillingDefaults struct {
	TaxRate             decimal.Decimal
	PaymentTermDays     int
	NumberingMaxRetries int
	BatchWorkers        int
}

// DefaultBillingDefaults returns sensible defaults for tests and local runs
func DefaultBillingDefaults() BillingDefaults {
	return BillingDefaults{
		TaxRate:             decimal.Zero,
		PaymentTermDays:     30,
		NumberingMaxRetries: 3,
		BatchWorkers:        4,
	}
}

// InvoiceService assembles billing-period invoices: it re-fetches the
// period's usage, recomputes pricing, groups and totals it, applies the
// monthly minimum and tax, and mints a unique invoice number.
type InvoiceService struct {
	contracts pricing.ContractRepository
	rules     pricing.PricingRuleRepository
	usage     pricing.UsageRepository
	invoices  invoicing.InvoiceRepository
	sequencer invoicing.Sequencer
	calc      *pricing.Calculator
	defaults  BillingDefaults
	logger    *zap.Logger
	now       func() time.Time
}

// InvoiceServiceOption is a functional option for configuring InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithInvoiceClock overrides the time source, for deterministic tests
func WithInvoiceClock(now func() time.Time) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.now = now
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	contracts pricing.ContractRepository,
	rules pricing.PricingRuleRepository,
	usage pricing.UsageRepository,
	invoices invoicing.InvoiceRepository,
	sequencer invoicing.Sequencer,
	calc *pricing.Calculator,
	defaults BillingDefaults,
	logger *zap.Logger,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	if defaults.NumberingMaxRetries <= 0 {
		defaults.NumberingMaxRetries = 3
	}
	if defaults.PaymentTermDays <= 0 {
		defaults.PaymentTermDays = 30
	}
	if defaults.BatchWorkers <= 0 {
		defaults.BatchWorkers = 4
	}
	s := &InvoiceService{
		contracts: contracts,
		rules:     rules,
		usage:     usage,
		invoices:  invoices,
		sequencer: sequencer,
		calc:      calc,
		defaults:  defaults,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateOptions controls invoice generation
type GenerateOptions struct {
	IncludeUnbilled bool
	ApplyMinimum    bool
	DueInDays       int
}

// DefaultGenerateOptions returns the options used when the caller specifies none
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{ApplyMinimum: true}
}

// GenerateInvoice builds and persists one invoice for a contract and billing
// period. Pricing is recomputed from usage, not read back from snapshots, so
// rule and tier changes reflect correctly until the invoice is issued.
func (s *InvoiceService) GenerateInvoice(
	ctx context.Context,
	tenantID, contractID uuid.UUID,
	periodStart, periodEnd time.Time,
	opts GenerateOptions,
) (*invoicing.Invoice, error) {
	if periodEnd.Before(periodStart) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Period end cannot be before period start")
	}

	contract, err := s.contracts.FindByIDForTenant(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != pricing.ContractStatusActive {
		return nil, shared.NewDomainError("INVALID_STATE", "Contract is not active")
	}

	if !opts.IncludeUnbilled {
		invoiced, err := s.invoices.ExistsForPeriod(ctx, tenantID, contractID, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		if invoiced {
			return nil, shared.NewDomainError("INVALID_STATE", "Period is already invoiced")
		}
	}

	records, err := s.usage.FindByContractAndPeriod(ctx, tenantID, contractID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	minimumApplies := opts.ApplyMinimum && contract.MonthlyMinimum != nil
	if len(records) == 0 && !minimumApplies {
		return nil, shared.NewDomainError("INVALID_STATE", "No usage in period")
	}

	invoiceDate := s.now()
	ruleSet, err := s.rules.FindActiveForTenant(ctx, tenantID, invoiceDate)
	if err != nil {
		return nil, err
	}
	ruleSet = pricing.FilterRulesInScope(ruleSet, invoiceDate)

	calcs := make([]pricing.Calculation, 0, len(records))
	for i := range records {
		r := &records[i]
		calc, err := s.calc.Calculate(ctx, contract, pricing.CalculationInput{
			ServiceType: r.ServiceType,
			Quantity:    r.Quantity,
			Unit:        r.Unit,
			UsageDate:   r.UsageDate,
		}, ruleSet, pricing.DefaultOptions())
		if err != nil {
			// A pricing gap aborts the whole invoice; a partially priced
			// invoice would under-bill silently.
			return nil, err
		}
		calcs = append(calcs, *calc)
	}

	taxRate := s.defaults.TaxRate
	if contract.TaxRate != nil {
		taxRate = *contract.TaxRate
	}

	items := invoicing.BuildLineItems(calcs, taxRate)
	subtotal, totalDiscount, taxable := invoicing.Totals(items)

	finalTaxable := taxable
	if minimumApplies {
		items, finalTaxable = invoicing.ApplyMonthlyMinimum(items, taxable, *contract.MonthlyMinimum, taxRate)
	}

	taxAmount := finalTaxable.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	totalAmount := finalTaxable.Add(taxAmount)

	dueDays := opts.DueInDays
	if dueDays <= 0 {
		dueDays = contract.PaymentTermDays
	}
	if dueDays <= 0 {
		dueDays = s.defaults.PaymentTermDays
	}

	invoice := &invoicing.Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Year:                invoiceDate.Year(),
		Month:               int(invoiceDate.Month()),
		ContractID:          contractID,
		CustomerID:          contract.CustomerID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		LineItems:           items,
		Subtotal:            subtotal,
		TotalDiscount:       totalDiscount,
		TaxableAmount:       finalTaxable,
		TaxRate:             taxRate,
		TaxAmount:           taxAmount,
		TotalAmount:         totalAmount,
		Currency:            contract.Currency,
		InvoiceDate:         invoiceDate,
		DueDate:             invoiceDate.AddDate(0, 0, dueDays),
		AppliedDiscounts:    invoicing.SummarizeDiscounts(calcs),
		SummaryByService:    invoicing.SummarizeByService(calcs),
	}

	if err := s.mintAndSave(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("invoice generated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("contract_id", contractID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total_amount", invoice.TotalAmount.String()),
	)
	return invoice, nil
}

// mintAndSave allocates a sequence, formats the invoice number and persists.
// Numbering conflicts are the one transient failure class here: they are
// retried with a fresh sequence read, bounded, then surfaced. Business-rule
// failures are never retried.
func (s *InvoiceService) mintAndSave(ctx context.Context, invoice *invoicing.Invoice) error {
	month := time.Month(invoice.Month)
	for attempt := 1; attempt <= s.defaults.NumberingMaxRetries; attempt++ {
		seq, err := s.sequencer.NextSequence(ctx, invoice.TenantID, invoice.Year, month)
		if err != nil {
			return err
		}
		invoice.Sequence = seq
		invoice.InvoiceNumber = invoicing.FormatInvoiceNumber(invoice.Year, month, seq)

		err = s.invoices.Save(ctx, invoice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrNumberingConflict) {
			return err
		}
		s.logger.Warn("invoice number conflict, retrying",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("attempt", attempt),
		)
	}
	return shared.ErrNumberingConflict
}

// GetInvoiceByNumber retrieves a previously generated invoice
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	if _, _, _, err := invoicing.ParseInvoiceNumber(invoiceNumber); err != nil {
		return nil, err
	}
	return s.invoices.FindByNumber(ctx, tenantID, invoiceNumber)
}

// BatchResult is the outcome of one contract in a batch invoicing run
type BatchResult struct {
	ContractID uuid.UUID
	Invoice    *invoicing.Invoice
	Err        error
}

// GenerateInvoices runs invoice generation for many contracts with a bounded
// worker pool. Each contract's invoice is fully independent; one contract's
// failure never aborts the others.
func (s *InvoiceService) GenerateInvoices(
	ctx context.Context,
	tenantID uuid.UUID,
	contractIDs []uuid.UUID,
	periodStart, periodEnd time.Time,
	opts GenerateOptions,
) []BatchResult {
	results := make([]BatchResult, len(contractIDs))
	sem := make(chan struct{}, s.defaults.BatchWorkers)
	var wg sync.WaitGroup

	for i, id := range contractIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			inv, err := s.GenerateInvoice(ctx, tenantID, id, periodStart, periodEnd, opts)
			results[i] = BatchResult{ContractID: id, Invoice: inv, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}
