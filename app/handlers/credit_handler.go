package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/matbaogit/WFAHub-sub000/app/middleware"
	businessflow "github.com/matbaogit/WFAHub-sub000/business_flow"
)

// CreditHandlerInterface defines the contract for credit reads
type CreditHandlerInterface interface {
	GetBalance(c fiber.Ctx) error
}

// CreditHandler handles credit balance requests
type CreditHandler struct {
	baseHandler
	creditFlow businessflow.CreditFlow
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditFlow businessflow.CreditFlow) *CreditHandler {
	return &CreditHandler{
		baseHandler: newBaseHandler(),
		creditFlow:  creditFlow,
	}
}

// GetBalance returns the caller's current credit balance
// @Summary Get Credit Balance
// @Tags Credits
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CreditBalanceResponse}
// @Router /api/v1/credits/balance [get]
func (h *CreditHandler) GetBalance(c fiber.Ctx) error {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return h.missingCustomer(c)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/credits/balance")
	defer cancel()

	result, err := h.creditFlow.GetBalance(ctx, customerID)
	if err != nil {
		return h.flowErrorResponse(c, err, "Failed to get balance", "GET_BALANCE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Balance retrieved successfully", result)
}
