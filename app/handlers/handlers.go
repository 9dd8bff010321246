// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/dto"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
	"github.com/matbaogit/WFAHub-sub000/utils"
)

const (
	defaultRequestTimeout = 30 * time.Second
	exportTimeout         = 2 * time.Minute
)

// baseHandler carries the response helpers shared by all handlers
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validationErrors runs struct validation and returns the messages to report, if any
func (h *baseHandler) validationErrors(req any) (any, bool) {
	err := h.validator.Struct(req)
	if err == nil {
		return nil, false
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error(), true
	}

	var messages []string
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages, true
}

// clientMetadata captures the caller details recorded in the audit log
func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := clientMetadata(c)
	if requestID, ok := c.Locals("request_id").(string); ok {
		metadata.SetRequestID(requestID)
	}
	return metadata
}

func (h *baseHandler) missingCustomer(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
}

// createRequestContext creates a context with a timeout and request-scoped values.
// The caller must call the returned cancel function.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		if v, ok := c.Locals("requestid").(string); ok {
			requestID = v
		}
	}

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

// flowErrorResponse maps business errors to status codes. Unknown errors are logged and reported as 500.
func (h *baseHandler) flowErrorResponse(c fiber.Ctx, err error, message, errorCode string) error {
	code := errorCode
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		code = be.Code
	}

	switch {
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsRecipientNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Recipient not found", "RECIPIENT_NOT_FOUND", nil)
	case businessflow.IsUploadExpired(err):
		return h.ErrorResponse(c, fiber.StatusGone, "Upload not found or expired", "UPLOAD_EXPIRED", nil)
	case businessflow.IsUploadTooLarge(err):
		return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "Uploaded file is too large", "UPLOAD_TOO_LARGE", nil)
	case businessflow.IsCampaignNotEditable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign can only be changed while draft", "CAMPAIGN_NOT_EDITABLE", nil)
	case businessflow.IsCampaignNotStartable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is already sending or finished", "CAMPAIGN_NOT_STARTABLE", nil)
	case businessflow.IsDispatchUnavailable(err):
		log.Println("Dispatch hand-off failed:", err)
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Campaign could not be started", "DISPATCH_UNAVAILABLE", nil)
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, validationMessage(err), code, nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, errorCode, nil)
}

// validationMessage is the innermost sentinel's text, which names the offending field
func validationMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
