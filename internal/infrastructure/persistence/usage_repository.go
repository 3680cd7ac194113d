package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared"
)

// UsageRecordModel is the GORM model for usage records with price snapshots
type UsageRecordModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID        `gorm:"type:uuid;index:idx_usage_tenant_contract;not null"`
	ContractID    uuid.UUID        `gorm:"type:uuid;index:idx_usage_tenant_contract;not null"`
	CustomerID    uuid.UUID        `gorm:"type:uuid;index;not null"`
	ServiceType   string           `gorm:"type:varchar(100);not null"`
	Quantity      decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	Unit          string           `gorm:"type:varchar(50)"`
	UsageDate     time.Time        `gorm:"not null;index"`
	Location      string           `gorm:"type:varchar(200)"`
	Reference     string           `gorm:"type:varchar(200)"`
	Metadata      pricing.Metadata `gorm:"type:jsonb;default:'{}'"`
	UnitPrice     decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`
	Subtotal      decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`
	TotalDiscount decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`
	TotalAmount   decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0"`
	PricedAt      *time.Time       `gorm:""`
	CreatedAt     time.Time        `gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToDomain converts the model to a domain entity
func (m *UsageRecordModel) ToDomain() pricing.UsageRecord {
	metadata := m.Metadata
	if metadata == nil {
		metadata = make(pricing.Metadata)
	}
	return pricing.UsageRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:      m.TenantID,
		ContractID:    m.ContractID,
		CustomerID:    m.CustomerID,
		ServiceType:   m.ServiceType,
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		UsageDate:     m.UsageDate,
		Location:      m.Location,
		Reference:     m.Reference,
		Metadata:      metadata,
		UnitPrice:     m.UnitPrice,
		Subtotal:      m.Subtotal,
		TotalDiscount: m.TotalDiscount,
		TotalAmount:   m.TotalAmount,
		PricedAt:      m.PricedAt,
	}
}

// UsageRecordModelFromDomain creates a model from a domain entity
func UsageRecordModelFromDomain(r *pricing.UsageRecord) *UsageRecordModel {
	return &UsageRecordModel{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ContractID:    r.ContractID,
		CustomerID:    r.CustomerID,
		ServiceType:   r.ServiceType,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		UsageDate:     r.UsageDate,
		Location:      r.Location,
		Reference:     r.Reference,
		Metadata:      r.Metadata,
		UnitPrice:     r.UnitPrice,
		Subtotal:      r.Subtotal,
		TotalDiscount: r.TotalDiscount,
		TotalAmount:   r.TotalAmount,
		PricedAt:      r.PricedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// GormUsageRepository implements pricing.UsageRepository and, through
// MonthlySpend, pricing.MonthlySpendProvider
type GormUsageRepository struct {
	db *gorm.DB
}

// NewGormUsageRepository creates a new usage repository
func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

// SaveBatch persists multiple usage records in batches
func (r *GormUsageRepository) SaveBatch(ctx context.Context, records []*pricing.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]*UsageRecordModel, len(records))
	for i, record := range records {
		models[i] = UsageRecordModelFromDomain(record)
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

// FindByContractAndPeriod retrieves a contract's usage whose usage date falls
// within [start, end] inclusive, ordered chronologically
func (r *GormUsageRepository) FindByContractAndPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) ([]pricing.UsageRecord, error) {
	var models []UsageRecordModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND contract_id = ?", tenantID, contractID).
		Where("usage_date >= ? AND usage_date <= ?", start, end).
		Order("usage_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]pricing.UsageRecord, len(models))
	for i := range models {
		records[i] = models[i].ToDomain()
	}
	return records, nil
}

// usage columns callers may order listings by
var usageOrderColumns = map[string]string{
	"usage_date":   "usage_date",
	"created_at":   "created_at",
	"total_amount": "total_amount",
	"service_type": "service_type",
}

// FindByContract pages through a contract's usage history. Unknown order
// columns fall back to the filter default rather than erroring.
func (r *GormUsageRepository) FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) (shared.Paginated[pricing.UsageRecord], error) {
	var empty shared.Paginated[pricing.UsageRecord]

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 || size > 200 {
		size = shared.DefaultFilter().PageSize
	}
	column, ok := usageOrderColumns[filter.OrderBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		dir = "ASC"
	}

	query := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Where("tenant_id = ? AND contract_id = ?", tenantID, contractID)
	if filter.Search != "" {
		query = query.Where("service_type LIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return empty, err
	}

	var models []UsageRecordModel
	err := query.
		Order(column + " " + dir).
		Offset((page - 1) * size).
		Limit(size).
		Find(&models).Error
	if err != nil {
		return empty, err
	}

	records := make([]pricing.UsageRecord, len(models))
	for i := range models {
		records[i] = models[i].ToDomain()
	}
	return shared.NewPaginated(records, total, page, size), nil
}

// SumMonthlySpend returns the customer's cumulative tracked spend for the
// calendar month containing at
func (r *GormUsageRepository) SumMonthlySpend(ctx context.Context, tenantID, customerID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Select("COALESCE(SUM(total_amount), 0) as total").
		Where("tenant_id = ?", tenantID).
		Where("customer_id = ?", customerID).
		Where("usage_date >= ?", start).
		Where("usage_date <= ?", end).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// MonthlySpend satisfies pricing.MonthlySpendProvider so the calculator can
// evaluate volume discount rules straight off tracked usage
func (r *GormUsageRepository) MonthlySpend(ctx context.Context, tenantID, customerID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	return r.SumMonthlySpend(ctx, tenantID, customerID, at)
}

var (
	_ pricing.UsageRepository      = (*GormUsageRepository)(nil)
	_ pricing.MonthlySpendProvider = (*GormUsageRepository)(nil)
)
