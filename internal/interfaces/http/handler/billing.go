package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/logiserv/billing/internal/application/billing"
	"github.com/logiserv/billing/internal/domain/shared"
	"github.com/logiserv/billing/internal/interfaces/http/dto"
)

// BillingHandler exposes usage tracking, price calculation and invoicing
type BillingHandler struct {
	BaseHandler
	pricing  *appbilling.PricingService
	invoices *appbilling.InvoiceService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(pricing *appbilling.PricingService, invoices *appbilling.InvoiceService) *BillingHandler {
	return &BillingHandler{pricing: pricing, invoices: invoices}
}

// RegisterRoutes registers the billing routes on a router group
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	contracts := rg.Group("/contracts/:id")
	{
		contracts.POST("/usage", h.TrackUsage)
		contracts.GET("/usage", h.ListUsage)
		contracts.POST("/pricing/calculate", h.CalculatePrice)
		contracts.GET("/pricing/analysis", h.AnalyzePricing)
	}
	invoices := rg.Group("/invoices")
	{
		invoices.POST("/generate", h.GenerateInvoice)
		invoices.POST("/generate-batch", h.GenerateInvoices)
		invoices.GET("/:number", h.GetInvoice)
	}
}

// TrackUsage records a batch of usage events against a contract
func (h *BillingHandler) TrackUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid contract ID")
		return
	}

	var req dto.TrackUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	opts := appbilling.DefaultTrackOptions()
	if req.AutoCalculatePrice != nil {
		opts.AutoCalculatePrice = *req.AutoCalculatePrice
	}
	if req.ValidateContract != nil {
		opts.ValidateContract = *req.ValidateContract
	}

	records, err := h.pricing.TrackUsage(c.Request.Context(), tenantID, contractID, usageInputs(req.Records), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]dto.UsageRecordResponse, len(records))
	for i, r := range records {
		resp[i] = dto.UsageRecordResponseFromDomain(r)
	}
	h.Created(c, resp)
}

// ListUsage pages through a contract's tracked usage history
func (h *BillingHandler) ListUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid contract ID")
		return
	}

	var req dto.ListUsageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search

	page, err := h.pricing.ListUsage(c.Request.Context(), tenantID, contractID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]dto.UsageRecordResponse, len(page.Items))
	for i := range page.Items {
		items[i] = dto.UsageRecordResponseFromDomain(&page.Items[i])
	}
	h.Success(c, shared.Paginated[dto.UsageRecordResponse]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// CalculatePrice prices a batch of usage events without persisting them
func (h *BillingHandler) CalculatePrice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid contract ID")
		return
	}

	var req dto.CalculatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	opts := appbilling.CalculateOptions{
		ApplyDiscounts:   true,
		ApplyMinimum:     req.ApplyMinimum,
		IncludeSetupFees: req.IncludeSetupFees,
		Prorated:         req.Prorated,
		EffectiveDate:    req.EffectiveDate,
	}
	if req.ApplyDiscounts != nil {
		opts.ApplyDiscounts = *req.ApplyDiscounts
	}

	quote, err := h.pricing.CalculatePrice(c.Request.Context(), tenantID, contractID, usageInputs(req.Records), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// AnalyzePricing summarizes tracked usage for a contract over a period
func (h *BillingHandler) AnalyzePricing(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid contract ID")
		return
	}

	var req dto.AnalyzePricingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	analysis, err := h.pricing.AnalyzePricing(c.Request.Context(), tenantID, contractID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analysis)
}

// GenerateInvoice builds and persists one invoice for a contract and period
func (h *BillingHandler) GenerateInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}

	var req dto.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		h.BadRequest(c, "Invalid contract ID")
		return
	}

	invoice, err := h.invoices.GenerateInvoice(
		c.Request.Context(), tenantID, contractID,
		req.PeriodStart, req.PeriodEnd, generateOptions(req.IncludeUnbilled, req.ApplyMinimum, req.DueInDays),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.InvoiceResponseFromDomain(invoice))
}

// GenerateInvoices runs invoice generation for several contracts at once
func (h *BillingHandler) GenerateInvoices(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}

	var req dto.BatchGenerateInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	contractIDs := make([]uuid.UUID, 0, len(req.ContractIDs))
	for _, raw := range req.ContractIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid contract ID: "+raw)
			return
		}
		contractIDs = append(contractIDs, id)
	}

	results := h.invoices.GenerateInvoices(
		c.Request.Context(), tenantID, contractIDs,
		req.PeriodStart, req.PeriodEnd, generateOptions(req.IncludeUnbilled, req.ApplyMinimum, req.DueInDays),
	)

	resp := dto.BatchInvoiceResponse{Results: make([]dto.BatchInvoiceResult, len(results))}
	for i, result := range results {
		item := dto.BatchInvoiceResult{ContractID: result.ContractID.String()}
		if result.Err != nil {
			resp.Failed++
			item.Error = batchError(result.Err)
		} else {
			resp.Succeeded++
			inv := dto.InvoiceResponseFromDomain(result.Invoice)
			item.Invoice = &inv
		}
		resp.Results[i] = item
	}
	h.Success(c, resp)
}

// GetInvoice retrieves a previously generated invoice by its number
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return
	}

	invoice, err := h.invoices.GetInvoiceByNumber(c.Request.Context(), tenantID, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.InvoiceResponseFromDomain(invoice))
}

func usageInputs(items []dto.UsageItemRequest) []appbilling.UsageInput {
	inputs := make([]appbilling.UsageInput, len(items))
	for i, item := range items {
		inputs[i] = appbilling.UsageInput{
			ServiceType: item.ServiceType,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Location:    item.Location,
			Reference:   item.Reference,
			Metadata:    item.Metadata,
		}
		if item.UsageDate != nil {
			inputs[i].UsageDate = *item.UsageDate
		}
	}
	return inputs
}

func generateOptions(includeUnbilled bool, applyMinimum *bool, dueInDays int) appbilling.GenerateOptions {
	opts := appbilling.DefaultGenerateOptions()
	opts.IncludeUnbilled = includeUnbilled
	opts.DueInDays = dueInDays
	if applyMinimum != nil {
		opts.ApplyMinimum = *applyMinimum
	}
	return opts
}

func batchError(err error) *dto.ErrorInfo {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return &dto.ErrorInfo{Code: dto.NormalizeErrorCode(domainErr.Code), Message: domainErr.Message}
	}
	return &dto.ErrorInfo{Code: dto.ErrCodeInternal, Message: "An unexpected error occurred"}
}
