package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/invoicing"
	"github.com/logiserv/billing/internal/domain/pricing"
	"github.com/logiserv/billing/internal/domain/shared/valueobject"
)

// UsageItemRequest is one usage event in a tracking or quoting request
type UsageItemRequest struct {
	ServiceType string          `json:"service_type" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"gte=0"`
	Unit        string          `json:"unit"`
	UsageDate   *time.Time      `json:"usage_date"`
	Location    string          `json:"location"`
	Reference   string          `json:"reference"`
	Metadata    map[string]any  `json:"metadata"`
}

// TrackUsageRequest records a batch of usage events against a contract
type TrackUsageRequest struct {
	Records            []UsageItemRequest `json:"records" binding:"required,min=1,dive"`
	AutoCalculatePrice *bool              `json:"auto_calculate_price"`
	ValidateContract   *bool              `json:"validate_contract"`
}

// CalculatePriceRequest prices a batch of usage events without persisting them
type CalculatePriceRequest struct {
	Records          []UsageItemRequest `json:"records" binding:"required,min=1,dive"`
	ApplyDiscounts   *bool              `json:"apply_discounts"`
	ApplyMinimum     bool               `json:"apply_minimum"`
	IncludeSetupFees bool               `json:"include_setup_fees"`
	Prorated         bool               `json:"prorated"`
	EffectiveDate    *time.Time         `json:"effective_date"`
}

// GenerateInvoiceRequest requests one invoice for a contract and billing period
type GenerateInvoiceRequest struct {
	ContractID      string    `json:"contract_id" binding:"required,uuid"`
	PeriodStart     time.Time `json:"period_start" binding:"required"`
	PeriodEnd       time.Time `json:"period_end" binding:"required"`
	IncludeUnbilled bool      `json:"include_unbilled"`
	ApplyMinimum    *bool     `json:"apply_minimum"`
	DueInDays       int       `json:"due_in_days" binding:"omitempty,min=0"`
}

// BatchGenerateInvoicesRequest requests invoices for several contracts at once
type BatchGenerateInvoicesRequest struct {
	ContractIDs     []string  `json:"contract_ids" binding:"required,min=1,dive,uuid"`
	PeriodStart     time.Time `json:"period_start" binding:"required"`
	PeriodEnd       time.Time `json:"period_end" binding:"required"`
	IncludeUnbilled bool      `json:"include_unbilled"`
	ApplyMinimum    *bool     `json:"apply_minimum"`
	DueInDays       int       `json:"due_in_days" binding:"omitempty,min=0"`
}

// ListUsageRequest pages a contract's usage history via query parameters
type ListUsageRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
}

// AnalyzePricingRequest bounds the analysis period via query parameters
type AnalyzePricingRequest struct {
	PeriodStart time.Time `form:"period_start" time_format:"2006-01-02" binding:"required"`
	PeriodEnd   time.Time `form:"period_end" time_format:"2006-01-02" binding:"required"`
}

// UsageRecordResponse is the API shape of a tracked usage record
type UsageRecordResponse struct {
	ID            string          `json:"id"`
	ContractID    string          `json:"contract_id"`
	CustomerID    string          `json:"customer_id"`
	ServiceType   string          `json:"service_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	UsageDate     time.Time       `json:"usage_date"`
	Location      string          `json:"location,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PricedAt      *time.Time      `json:"priced_at,omitempty"`
}

// UsageRecordResponseFromDomain maps a domain usage record to its API shape
func UsageRecordResponseFromDomain(r *pricing.UsageRecord) UsageRecordResponse {
	return UsageRecordResponse{
		ID:            r.ID.String(),
		ContractID:    r.ContractID.String(),
		CustomerID:    r.CustomerID.String(),
		ServiceType:   r.ServiceType,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		UsageDate:     r.UsageDate,
		Location:      r.Location,
		Reference:     r.Reference,
		UnitPrice:     r.UnitPrice,
		Subtotal:      r.Subtotal,
		TotalDiscount: r.TotalDiscount,
		TotalAmount:   r.TotalAmount,
		PricedAt:      r.PricedAt,
	}
}

// InvoiceResponse is the API shape of a generated invoice
type InvoiceResponse struct {
	ID               string                              `json:"id"`
	InvoiceNumber    string                              `json:"invoice_number"`
	ContractID       string                              `json:"contract_id"`
	CustomerID       string                              `json:"customer_id"`
	PeriodStart      time.Time                           `json:"period_start"`
	PeriodEnd        time.Time                           `json:"period_end"`
	LineItems        invoicing.LineItems                 `json:"line_items"`
	Subtotal         decimal.Decimal                     `json:"subtotal"`
	TotalDiscount    decimal.Decimal                     `json:"total_discount"`
	TaxableAmount    decimal.Decimal                     `json:"taxable_amount"`
	TaxRate          decimal.Decimal                     `json:"tax_rate"`
	TaxAmount        decimal.Decimal                     `json:"tax_amount"`
	TotalAmount      decimal.Decimal                     `json:"total_amount"`
	Currency         string                              `json:"currency"`
	InvoiceDate      time.Time                           `json:"invoice_date"`
	DueDate          time.Time                           `json:"due_date"`
	AppliedDiscounts invoicing.AppliedDiscounts          `json:"applied_discounts"`
	SummaryByService map[string]invoicing.ServiceSummary `json:"summary_by_service,omitempty"`
	Total            valueobject.Money                   `json:"total"`
}

// InvoiceResponseFromDomain maps a domain invoice to its API shape
func InvoiceResponseFromDomain(inv *invoicing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:               inv.ID.String(),
		InvoiceNumber:    inv.InvoiceNumber,
		ContractID:       inv.ContractID.String(),
		CustomerID:       inv.CustomerID.String(),
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
		SummaryByService: inv.SummaryByService,
		Total:            valueobject.MustMoney(inv.TotalAmount, inv.Currency),
	}
}

// BatchInvoiceResult is the per-contract outcome of a batch invoicing run
type BatchInvoiceResult struct {
	ContractID string           `json:"contract_id"`
	Invoice    *InvoiceResponse `json:"invoice,omitempty"`
	Error      *ErrorInfo       `json:"error,omitempty"`
}

// BatchInvoiceResponse summarizes a batch invoicing run
type BatchInvoiceResponse struct {
	Results   []BatchInvoiceResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}
