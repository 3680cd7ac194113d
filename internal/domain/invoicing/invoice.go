package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

// MonthlyMinimumService is the synthetic service type used for the
// minimum-charge top-up line item
const MonthlyMinimumService = "monthly_minimum"

// LineItem is one aggregated, service-grouped row on an invoice
type LineItem struct {
	ServiceType    string          `json:"service_type"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
}

// LineItems is a JSONB-stored list of line items
type LineItems []LineItem

// Value implements driver.Valuer for database storage
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (l *LineItems) Scan(value any) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into LineItems", value)
	}
	return json.Unmarshal(data, l)
}

// AppliedDiscount aggregates one discount source across the whole period
type AppliedDiscount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// AppliedDiscounts is a JSONB-stored list of aggregated discounts
type AppliedDiscounts []AppliedDiscount

// Value implements driver.Valuer for database storage
func (a AppliedDiscounts) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (a *AppliedDiscounts) Scan(value any) error {
	if value == nil {
		*a = AppliedDiscounts{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AppliedDiscounts", value)
	}
	return json.Unmarshal(data, a)
}

// ServiceSummary is the per-service rollup reported alongside an invoice
type ServiceSummary struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	RecordCount int             `json:"record_count"`
}

// Invoice is one billing-period invoice calculation for a contract.
// It is created on demand per invoicing run and never mutated after
// construction; a re-run produces a new, independent invoice.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string
	Year          int
	Month         int
	Sequence      int
	ContractID    uuid.UUID
	CustomerID    uuid.UUID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	LineItems     LineItems
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TaxableAmount decimal.Decimal
	TaxRate       decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      valueobject.Currency
	InvoiceDate   time.Time
	DueDate       time.Time

	AppliedDiscounts AppliedDiscounts
	SummaryByService map[string]ServiceSummary `gorm:"-"`
}
