package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/logiserv/billing/internal/domain/invoicing"
	"github.com/logiserv/billing/internal/domain/shared"
	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

// InvoiceModel is the GORM model for issued invoices. The unique index on
// (tenant_id, year, month, sequence) is what makes invoice numbers unique
// under concurrent generation; Save translates its violation into
// shared.ErrNumberingConflict for the retry loop upstream.
type InvoiceModel struct {
	ID               uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_month_seq"`
	InvoiceNumber    string                     `gorm:"type:varchar(20);not null;index"`
	Year             int                        `gorm:"not null;uniqueIndex:idx_invoices_tenant_month_seq"`
	Month            int                        `gorm:"not null;uniqueIndex:idx_invoices_tenant_month_seq"`
	Sequence         int                        `gorm:"not null;uniqueIndex:idx_invoices_tenant_month_seq"`
	ContractID       uuid.UUID                  `gorm:"type:uuid;index;not null"`
	CustomerID       uuid.UUID                  `gorm:"type:uuid;index;not null"`
	PeriodStart      time.Time                  `gorm:"not null"`
	PeriodEnd        time.Time                  `gorm:"not null"`
	LineItems        invoicing.LineItems        `gorm:"type:jsonb;default:'[]'"`
	Subtotal         decimal.Decimal            `gorm:"type:numeric(20,6);not null;default:0"`
	TotalDiscount    decimal.Decimal            `gorm:"type:numeric(20,6);not null;default:0"`
	TaxableAmount    decimal.Decimal            `gorm:"type:numeric(20,6);not null;default:0"`
	TaxRate          decimal.Decimal            `gorm:"type:numeric(8,4);not null;default:0"`
	TaxAmount        decimal.Decimal            `gorm:"type:numeric(20,6);not null;default:0"`
	TotalAmount      decimal.Decimal            `gorm:"type:numeric(20,6);not null;default:0"`
	Currency         string                     `gorm:"type:varchar(3);not null;default:'USD'"`
	InvoiceDate      time.Time                  `gorm:"not null"`
	DueDate          time.Time                  `gorm:"not null"`
	AppliedDiscounts invoicing.AppliedDiscounts `gorm:"type:jsonb;default:'[]'"`
	Version          int                        `gorm:"not null;default:1"`
	CreatedAt        time.Time                  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain entity
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	return &invoicing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID: m.TenantID,
		},
		InvoiceNumber:    m.InvoiceNumber,
		Year:             m.Year,
		Month:            m.Month,
		Sequence:         m.Sequence,
		ContractID:       m.ContractID,
		CustomerID:       m.CustomerID,
		PeriodStart:      m.PeriodStart,
		PeriodEnd:        m.PeriodEnd,
		LineItems:        m.LineItems,
		Subtotal:         m.Subtotal,
		TotalDiscount:    m.TotalDiscount,
		TaxableAmount:    m.TaxableAmount,
		TaxRate:          m.TaxRate,
		TaxAmount:        m.TaxAmount,
		TotalAmount:      m.TotalAmount,
		Currency:         valueobject.Currency(m.Currency),
		InvoiceDate:      m.InvoiceDate,
		DueDate:          m.DueDate,
		AppliedDiscounts: m.AppliedDiscounts,
	}
}

// InvoiceModelFromDomain creates a model from a domain entity
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	return &InvoiceModel{
		ID:               inv.ID,
		TenantID:         inv.TenantID,
		InvoiceNumber:    inv.InvoiceNumber,
		Year:             inv.Year,
		Month:            inv.Month,
		Sequence:         inv.Sequence,
		ContractID:       inv.ContractID,
		CustomerID:       inv.CustomerID,
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		LineItems:        inv.LineItems,
		Subtotal:         inv.Subtotal,
		TotalDiscount:    inv.TotalDiscount,
		TaxableAmount:    inv.TaxableAmount,
		TaxRate:          inv.TaxRate,
		TaxAmount:        inv.TaxAmount,
		TotalAmount:      inv.TotalAmount,
		Currency:         string(inv.Currency),
		InvoiceDate:      inv.InvoiceDate,
		DueDate:          inv.DueDate,
		AppliedDiscounts: inv.AppliedDiscounts,
		Version:          inv.Version,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

// GormInvoiceRepository implements invoicing.InvoiceRepository
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new invoice repository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Save persists an invoice. A duplicate (tenant, year, month, sequence) key
// surfaces as shared.ErrNumberingConflict.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	model := InvoiceModelFromDomain(invoice)
	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrNumberingConflict
		}
		return err
	}
	return nil
}

// FindByNumber retrieves an invoice by its formatted number, scoped to a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	var model InvoiceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountForMonth returns how many invoices the tenant has issued in the month
func (r *GormInvoiceRepository) CountForMonth(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&InvoiceModel{}).
		Where("tenant_id = ? AND year = ? AND month = ?", tenantID, year, int(month)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsForPeriod reports whether the contract already has an invoice whose
// billing period overlaps [start, end]
func (r *GormInvoiceRepository) ExistsForPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&InvoiceModel{}).
		Where("tenant_id = ? AND contract_id = ?", tenantID, contractID).
		Where("period_start <= ? AND period_end >= ?", end, start).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)

// DatabaseSequencer allocates invoice sequences from the invoice count for
// the month. Two concurrent callers can read the same count; the unique index
// turns the collision into ErrNumberingConflict, which the generation retry
// loop absorbs. Use the Redis sequencer when contention is expected.
type DatabaseSequencer struct {
	invoices *GormInvoiceRepository
}

// NewDatabaseSequencer creates a count-based sequencer backed by the invoice table
func NewDatabaseSequencer(invoices *GormInvoiceRepository) *DatabaseSequencer {
	return &DatabaseSequencer{invoices: invoices}
}

// NextSequence returns the next invoice sequence for the tenant and month
func (s *DatabaseSequencer) NextSequence(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int, error) {
	count, err := s.invoices.CountForMonth(ctx, tenantID, year, month)
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

var _ invoicing.Sequencer = (*DatabaseSequencer)(nil)
