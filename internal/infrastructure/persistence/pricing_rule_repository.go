package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

// PricingRuleModel is the GORM model for pricing rules
type PricingRuleModel struct {
	ID         uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID              `gorm:"type:uuid;index;not null"`
	Name       string                 `gorm:"type:varchar(200);not null"`
	Type       string                 `gorm:"type:varchar(50);not null"`
	Conditions pricing.RuleConditions `gorm:"type:jsonb;default:'{}'"`
	Action     string                 `gorm:"type:varchar(50);not null"`
	Value      decimal.Decimal        `gorm:"type:numeric(20,6);not null"`
	Priority   int                    `gorm:"not null;default:0"`
	Active     bool                   `gorm:"not null;default:true;index"`
	ValidFrom  *time.Time             `gorm:""`
	ValidUntil *time.Time             `gorm:""`
	Version    int                    `gorm:"not null;default:1"`
	CreatedAt  time.Time              `gorm:"autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (PricingRuleModel) TableName() string {
	return "pricing_rules"
}

// ToDomain converts the model to a domain entity
func (m *PricingRuleModel) ToDomain() pricing.PricingRule {
	return pricing.PricingRule{
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
		Name:       m.Name,
		Type:       pricing.RuleType(m.Type),
		Conditions: m.Conditions,
		Action:     pricing.RuleAction(m.Action),
		Value:      m.Value,
		Priority:   m.Priority,
		Active:     m.Active,
		ValidFrom:  m.ValidFrom,
		ValidUntil: m.ValidUntil,
	}
}

// PricingRuleModelFromDomain creates a model from a domain entity
func PricingRuleModelFromDomain(r *pricing.PricingRule) *PricingRuleModel {
	return &PricingRuleModel{
		ID:         r.ID,
		TenantID:   r.TenantID,
		Name:       r.Name,
		Type:       string(r.Type),
		Conditions: r.Conditions,
		Action:     string(r.Action),
		Value:      r.Value,
		Priority:   r.Priority,
		Active:     r.Active,
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// GormPricingRuleRepository implements pricing.PricingRuleRepository
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewGormPricingRuleRepository creates a new pricing rule repository
func NewGormPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// FindActiveForTenant returns the tenant's rules that are active and whose
// validity window covers the given time, ordered by priority
func (r *GormPricingRuleRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) ([]pricing.PricingRule, error) {
	var models []PricingRuleModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", at).
		Where("valid_until IS NULL OR valid_until >= ?", at).
		Order("priority ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	rules := make([]pricing.PricingRule, len(models))
	for i := range models {
		rules[i] = models[i].ToDomain()
	}
	return rules, nil
}

// Save persists a pricing rule, creating or updating as needed
func (r *GormPricingRuleRepository) Save(ctx context.Context, rule *pricing.PricingRule) error {
	model := PricingRuleModelFromDomain(rule)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ pricing.PricingRuleRepository = (*GormPricingRuleRepository)(nil)
