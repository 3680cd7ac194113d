package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

// ContractModel is the GORM model for billing contracts
type ContractModel struct {
	ID              uuid.UUID            `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_contracts_tenant_number"`
	ContractNumber  string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_contracts_tenant_number"`
	CustomerID      uuid.UUID            `gorm:"type:uuid;index;not null"`
	Status          string               `gorm:"type:varchar(20);not null;default:'draft'"`
	Currency        string               `gorm:"type:varchar(3);not null;default:'USD'"`
	StartDate       time.Time            `gorm:"not null"`
	EndDate         *time.Time           `gorm:""`
	MonthlyMinimum  *decimal.Decimal     `gorm:"type:numeric(20,6)"`
	TaxRate         *decimal.Decimal     `gorm:"type:numeric(8,4)"`
	PaymentTermDays int                  `gorm:"not null;default:30"`
	Tiers           pricing.PricingTiers `gorm:"type:jsonb;default:'[]'"`
	Version         int                  `gorm:"not null;default:1"`
	CreatedAt       time.Time            `gorm:"autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ContractModel) TableName() string {
	return "billing_contracts"
}

// ToDomain converts the model to a domain entity
func (m *ContractModel) ToDomain() *pricing.Contract {
	return &pricing.Contract{
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
		ContractNumber:  m.ContractNumber,
		CustomerID:      m.CustomerID,
		Status:          pricing.ContractStatus(m.Status),
		Currency:        valueobject.Currency(m.Currency),
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		MonthlyMinimum:  m.MonthlyMinimum,
		TaxRate:         m.TaxRate,
		PaymentTermDays: m.PaymentTermDays,
		Tiers:           m.Tiers,
	}
}

// ContractModelFromDomain creates a model from a domain entity
func ContractModelFromDomain(c *pricing.Contract) *ContractModel {
	return &ContractModel{
		ID:              c.ID,
		TenantID:        c.TenantID,
		ContractNumber:  c.ContractNumber,
		CustomerID:      c.CustomerID,
		Status:          string(c.Status),
		Currency:        string(c.Currency),
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		MonthlyMinimum:  c.MonthlyMinimum,
		TaxRate:         c.TaxRate,
		PaymentTermDays: c.PaymentTermDays,
		Tiers:           c.Tiers,
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// GormContractRepository implements pricing.ContractRepository
type GormContractRepository struct {
	db *gorm.DB
}

// NewGormContractRepository creates a new contract repository
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db}
}

// FindByIDForTenant retrieves a contract by ID, scoped to a tenant
func (r *GormContractRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*pricing.Contract, error) {
	var model ContractModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a contract, creating or updating as needed
func (r *GormContractRepository) Save(ctx context.Context, contract *pricing.Contract) error {
	model := ContractModelFromDomain(contract)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ pricing.ContractRepository = (*GormContractRepository)(nil)
