package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	"github.com/matbaogit/WFAHub-sub000/app/middleware"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
)

// UploadHandlerInterface defines the contract for recipient list uploads
type UploadHandlerInterface interface {
	UploadRecipients(c fiber.Ctx) error
}

// UploadHandler handles recipient list uploads
type UploadHandler struct {
	baseHandler
	importFlow businessflow.RecipientImportFlow
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(importFlow businessflow.RecipientImportFlow) *UploadHandler {
	return &UploadHandler{
		baseHandler: newBaseHandler(),
		importFlow:  importFlow,
	}
}

// UploadRecipients accepts a multipart/form-data with a CSV or XLSX file and returns its columns
// @Summary Upload Recipient List
// @Tags Campaigns
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file with a header row"
// @Success 201 {object} dto.APIResponse{data=dto.UploadRecipientsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 413 {object} dto.APIResponse
// @Router /api/v1/campaigns/uploads [post]
func (h *UploadHandler) UploadRecipients(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "UPLOAD_REQUIRED", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	metadata := clientMetadata(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/uploads")
	defer cancel()

	result, err := h.importFlow.PreviewUpload(ctx, &dto.UploadRecipientsRequest{
		CustomerID: customerID,
		FileName:   fileHeader.Filename,
		Size:       fileHeader.Size,
		Content:    file,
	}, metadata)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to parse upload", "UPLOAD_PARSE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Upload parsed successfully", result)
}
