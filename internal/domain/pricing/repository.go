package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
)

// ContractRepository provides access to billing contracts. Contracts are
// owned by contract management; the engine only reads them here.
type ContractRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Contract, error)
	Save(ctx context.Context, contract *Contract) error
}

// PricingRuleRepository provides access to the tenant's pricing rules
type PricingRuleRepository interface {
	// FindActiveForTenant returns the rules active and valid at the given
	// effective date. This is the once-per-run scope filter.
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) ([]PricingRule, error)
	Save(ctx context.Context, rule *PricingRule) error
}

// UsageRepository persists usage records together with their price snapshots
type UsageRepository interface {
	SaveBatch(ctx context.Context, records []*UsageRecord) error
	FindByContractAndPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) ([]UsageRecord, error)
	// FindByContract pages through a contract's usage history, newest first
	// by default.
	FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) (shared.Paginated[UsageRecord], error)
	// SumMonthlySpend returns the customer's cumulative tracked spend for the
	// calendar month containing at. Backs the volume_discount rule type.
	SumMonthlySpend(ctx context.Context, tenantID, customerID uuid.UUID, at time.Time) (decimal.Decimal, error)
}
