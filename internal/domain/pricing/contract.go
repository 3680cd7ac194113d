package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

// ContractStatus represents the lifecycle status of a billing contract
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusSuspended  ContractStatus = "suspended"
	ContractStatusTerminated ContractStatus = "terminated"
)

// IsValid returns true if the status is a known contract status
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusActive, ContractStatusSuspended, ContractStatusTerminated:
		return true
	}
	return false
}

// PricingTier is a quantity-bounded unit price for a named service.
// Within one service's tier list, ranges should be non-overlapping and ordered
// ascending by MinQuantity; the resolver tolerates violations by falling back
// to the last tier whose MinQuantity the quantity meets or exceeds.
type PricingTier struct {
	ServiceName        string           `json:"service_name"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	Unit               string           `json:"unit"`
	MinQuantity        decimal.Decimal  `json:"min_quantity"`
	MaxQuantity        *decimal.Decimal `json:"max_quantity,omitempty"`
	SetupFee           *decimal.Decimal `json:"setup_fee,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

// Contains returns true if quantity falls within [MinQuantity, MaxQuantity].
// A nil MaxQuantity means the tier is open-ended.
func (t *PricingTier) Contains(quantity decimal.Decimal) bool {
	if quantity.LessThan(t.MinQuantity) {
		return false
	}
	if t.MaxQuantity != nil && quantity.GreaterThan(*t.MaxQuantity) {
		return false
	}
	return true
}

// MatchesService reports whether the tier applies to the given service type.
// Matching is case-insensitive and substring-based in either direction because
// upstream service naming is inconsistent ("storage" vs "cold-storage-rack").
func (t *PricingTier) MatchesService(serviceType string) bool {
	name := strings.ToLower(strings.TrimSpace(t.ServiceName))
	svc := strings.ToLower(strings.TrimSpace(serviceType))
	if name == "" || svc == "" {
		return false
	}
	return strings.Contains(name, svc) || strings.Contains(svc, name)
}

// PricingTiers is a list of tiers stored as a JSONB column
type PricingTiers []PricingTier

// Value implements driver.Valuer for database storage
func (t PricingTiers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (t *PricingTiers) Scan(value any) error {
	if value == nil {
		*t = PricingTiers{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PricingTiers", value)
	}
	return json.Unmarshal(data, t)
}

// Contract identifies a billing agreement. It is owned by contract management;
// the pricing engine reads it and never mutates its status.
type Contract struct {
	shared.TenantAggregateRoot
	ContractNumber  string
	CustomerID      uuid.UUID
	Status          ContractStatus
	Currency        valueobject.Currency
	StartDate       time.Time
	EndDate         *time.Time
	MonthlyMinimum  *decimal.Decimal
	TaxRate         *decimal.Decimal
	PaymentTermDays int
	Tiers           PricingTiers
}

// NewContract creates a contract with validation
func NewContract(
	tenantID uuid.UUID,
	contractNumber string,
	customerID uuid.UUID,
	currency valueobject.Currency,
	startDate time.Time,
	tiers PricingTiers,
) (*Contract, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if contractNumber == "" {
		return nil, shared.NewDomainError("INVALID_CONTRACT_NUMBER", "Contract number cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Contract{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ContractNumber:      contractNumber,
		CustomerID:          customerID,
		Status:              ContractStatusDraft,
		Currency:            currency,
		StartDate:           startDate,
		PaymentTermDays:     30,
		Tiers:               tiers,
	}, nil
}

// IsActiveAt returns true if the contract is billable at the given time:
// status is active and the time falls within the contract window.
func (c *Contract) IsActiveAt(t time.Time) bool {
	if c.Status != ContractStatusActive {
		return false
	}
	if t.Before(c.StartDate) {
		return false
	}
	if c.EndDate != nil && t.After(*c.EndDate) {
		return false
	}
	return true
}

// MonthsSinceStart returns the number of whole months elapsed between the
// contract start date and the given time. Used by loyalty rule eligibility.
func (c *Contract) MonthsSinceStart(at time.Time) int {
	if at.Before(c.StartDate) {
		return 0
	}
	years := at.Year() - c.StartDate.Year()
	months := int(at.Month()) - int(c.StartDate.Month())
	total := years*12 + months
	if at.Day() < c.StartDate.Day() {
		total--
	}
	if total < 0 {
		return 0
	}
	return total
}
