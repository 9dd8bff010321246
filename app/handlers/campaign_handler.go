package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/middleware"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	PreviewCampaign(c fiber.Ctx) error
	StartSending(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
	ExportRecipients(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	campaignFlow businessflow.CampaignFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		baseHandler:  newBaseHandler(),
		campaignFlow: campaignFlow,
	}
}

// CreateCampaign applies a column mapping to an uploaded list and creates a draft campaign
// @Summary Create Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Upload token, mapping, templates and schedule"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 410 {object} dto.APIResponse "Upload expired"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if details, invalid := h.validationErrors(&req); invalid {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}
	req.CustomerID = customerID

	metadata := clientMetadata(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req, metadata)
	if err != nil {
		return h.flowErrorResponse(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// UpdateCampaign changes templates, send rate or schedule of a draft campaign
// @Summary Update Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.UpdateCampaignRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateCampaignResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Campaign is no longer a draft"
// @Router /api/v1/campaigns/{uuid} [put]
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if details, invalid := h.validationErrors(&req); invalid {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}
	req.UUID = campaignUUID
	req.CustomerID = customerID

	metadata := clientMetadata(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID)
	defer cancel()

	result, err := h.campaignFlow.UpdateCampaign(ctx, &req, metadata)
	if err != nil {
		return h.flowErrorResponse(c, err, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// GetCampaign returns a campaign with its live counters
// @Summary Get Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	campaignUUID := c.Params("uuid")
	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID)
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, &dto.GetCampaignRequest{UUID: campaignUUID, CustomerID: customerID})
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to get campaign", "GET_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaigns lists the caller's campaigns
// @Summary List Campaigns
// @Tags Campaigns
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param status query string false "Filter by status"
// @Param orderby query string false "newest (default) or oldest"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse}
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	page, limit := pagination(c)
	req := &dto.ListCampaignsRequest{
		CustomerID: customerID,
		Page:       page,
		Limit:      limit,
		Status:     c.Query("status"),
		OrderBy:    c.Query("orderby", "newest"),
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.ListCampaigns(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// PreviewCampaign renders the templates for one recipient
// @Summary Preview Campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param request body dto.PreviewCampaignRequest false "Recipient to render for (first pending by default)"
// @Success 200 {object} dto.APIResponse{data=dto.PreviewCampaignResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/campaigns/{uuid}/preview [post]
func (h *CampaignHandler) PreviewCampaign(c fiber.Ctx) error {
	var req dto.PreviewCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}
	req.UUID = c.Params("uuid")
	req.CustomerID = customerID

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/preview")
	defer cancel()

	result, err := h.campaignFlow.PreviewCampaign(ctx, &req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to render preview", "PREVIEW_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Preview rendered successfully", result)
}

// StartSending starts a draft or scheduled campaign
// @Summary Start Sending
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 202 {object} dto.APIResponse{data=dto.StartCampaignResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Campaign already sending or finished"
// @Failure 503 {object} dto.APIResponse "Dispatch queue unavailable"
// @Router /api/v1/campaigns/{uuid}/send [post]
func (h *CampaignHandler) StartSending(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	campaignUUID := c.Params("uuid")
	metadata := clientMetadata(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/send")
	defer cancel()

	result, err := h.campaignFlow.StartSending(ctx, &dto.StartCampaignRequest{UUID: campaignUUID, CustomerID: customerID}, metadata)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to start campaign", "CAMPAIGN_START_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, result.Message, result)
}

// ListRecipients pages through a campaign's recipients
// @Summary List Recipients
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param status query string false "pending, sent or failed"
// @Success 200 {object} dto.APIResponse{data=dto.ListRecipientsResponse}
// @Router /api/v1/campaigns/{uuid}/recipients [get]
func (h *CampaignHandler) ListRecipients(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	page, limit := pagination(c)
	req := &dto.ListRecipientsRequest{
		UUID:       c.Params("uuid"),
		CustomerID: customerID,
		Page:       page,
		Limit:      limit,
		Status:     c.Query("status"),
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/recipients")
	defer cancel()

	result, err := h.campaignFlow.ListRecipients(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to list recipients", "LIST_RECIPIENTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved successfully", result)
}

// ExportRecipients downloads the recipients with their outcome as an Excel workbook
// @Summary Export Recipients
// @Tags Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Campaign UUID"
// @Success 200 {string} string "Excel file"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/campaigns/{uuid}/recipients/export [get]
func (h *CampaignHandler) ExportRecipients(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	campaignUUID := c.Params("uuid")
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/campaigns/"+campaignUUID+"/recipients/export", exportTimeout)
	defer cancel()

	result, err := h.campaignFlow.ExportRecipients(ctx, &dto.GetCampaignRequest{UUID: campaignUUID, CustomerID: customerID})
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to generate Excel", "EXPORT_FAILED")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+result.FileName)
	return c.Send(result.Content)
}

// pagination reads page and limit; the flow clamps out-of-range values
func pagination(c fiber.Ctx) (int, int) {
	page, limit := 1, 0
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}
