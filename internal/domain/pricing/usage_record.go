package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
)

// Metadata holds additional context about a usage record
type Metadata map[string]any

// Value implements driver.Valuer for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}
	return json.Unmarshal(data, m)
}

// UsageRecord is one metered consumption event for a contract.
// Once priced and persisted it is immutable; corrections happen via new
// offsetting records, never in-place edits, to preserve the audit trail.
type UsageRecord struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	ContractID  uuid.UUID
	CustomerID  uuid.UUID
	ServiceType string
	Quantity    decimal.Decimal
	Unit        string
	UsageDate   time.Time
	Location    string
	Reference   string
	Metadata    Metadata

	// Price snapshot taken at ingestion time, independent of later
	// recomputation during invoicing. Zero until priced.
	UnitPrice     decimal.Decimal
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalAmount   decimal.Decimal
	PricedAt      *time.Time
}

// NewUsageRecord creates a usage record with validation
func NewUsageRecord(
	tenantID uuid.UUID,
	contractID uuid.UUID,
	customerID uuid.UUID,
	serviceType string,
	quantity decimal.Decimal,
	unit string,
	usageDate time.Time,
) (*UsageRecord, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if contractID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONTRACT", "Contract ID cannot be empty")
	}
	if serviceType == "" {
		return nil, shared.NewDomainError("INVALID_SERVICE_TYPE", "Service type cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if usageDate.IsZero() {
		usageDate = time.Now()
	}
	return &UsageRecord{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		ContractID:  contractID,
		CustomerID:  customerID,
		ServiceType: serviceType,
		Quantity:    quantity,
		Unit:        unit,
		UsageDate:   usageDate,
		Metadata:    make(Metadata),
	}, nil
}

// WithLocation sets the location where usage occurred
func (r *UsageRecord) WithLocation(location string) *UsageRecord {
	r.Location = location
	return r
}

// WithReference sets an external reference for the usage event
func (r *UsageRecord) WithReference(reference string) *UsageRecord {
	r.Reference = reference
	return r
}

// WithMetadata adds metadata to the usage record
func (r *UsageRecord) WithMetadata(key string, value any) *UsageRecord {
	if r.Metadata == nil {
		r.Metadata = make(Metadata)
	}
	r.Metadata[key] = value
	return r
}

// ApplyPricing captures the price snapshot from a calculation
func (r *UsageRecord) ApplyPricing(calc *Calculation, at time.Time) {
	r.UnitPrice = calc.UnitPrice
	r.Subtotal = calc.Subtotal
	r.TotalDiscount = calc.TotalDiscount
	r.TotalAmount = calc.NetAmount
	r.PricedAt = &at
}

// IsPriced returns true if a price snapshot has been captured
func (r *UsageRecord) IsPriced() bool {
	return r.PricedAt != nil
}

// IsInPeriod returns true if the usage date falls within [start, end] inclusive
func (r *UsageRecord) IsInPeriod(start, end time.Time) bool {
	return !r.UsageDate.Before(start) && !r.UsageDate.After(end)
}
