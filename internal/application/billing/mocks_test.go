package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/logiserv/billing/internal/domain/invoicing"
	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*pricing.Contract, error) {
	args := m.Called(ctx, tenantID, id)
	if c := args.Get(0); c != nil {
		return c.(*pricing.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockContractRepo) Save(ctx context.Context, contract *pricing.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

type mockRuleRepo struct {
	mock.Mock
}

func (m *mockRuleRepo) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) ([]pricing.PricingRule, error) {
	args := m.Called(ctx, tenantID, at)
	if r := args.Get(0); r != nil {
		return r.([]pricing.PricingRule), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRuleRepo) Save(ctx context.Context, rule *pricing.PricingRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

type mockUsageRepo struct {
	mock.Mock
}

func (m *mockUsageRepo) SaveBatch(ctx context.Context, records []*pricing.UsageRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockUsageRepo) FindByContractAndPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) ([]pricing.UsageRecord, error) {
	args := m.Called(ctx, tenantID, contractID, start, end)
	if r := args.Get(0); r != nil {
		return r.([]pricing.UsageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsageRepo) FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) (shared.Paginated[pricing.UsageRecord], error) {
	args := m.Called(ctx, tenantID, contractID, filter)
	return args.Get(0).(shared.Paginated[pricing.UsageRecord]), args.Error(1)
}

func (m *mockUsageRepo) SumMonthlySpend(ctx context.Context, tenantID, customerID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, customerID, at)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	if inv := args.Get(0); inv != nil {
		return inv.(*invoicing.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInvoiceRepo) CountForMonth(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int64, error) {
	args := m.Called(ctx, tenantID, year, month)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInvoiceRepo) ExistsForPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, contractID, start, end)
	return args.Bool(0), args.Error(1)
}

type mockSequencer struct {
	mock.Mock
}

func (m *mockSequencer) NextSequence(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int, error) {
	args := m.Called(ctx, tenantID, year, month)
	return args.Int(0), args.Error(1)
}
