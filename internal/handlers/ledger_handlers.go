package handlers

import (
	"net/http"

	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// LedgerHandlers handles metering and balance HTTP requests
type LedgerHandlers struct {
	ledgerService services.LedgerService
}

func NewLedgerHandlers(ledgerService services.LedgerService) *LedgerHandlers {
	return &LedgerHandlers{ledgerService: ledgerService}
}

// ChargeRequest represents a metered charge. Context fields (order,
// profile, user, filename) are stored with the transaction verbatim.
type ChargeRequest struct {
	Service  string       `json:"service"`
	Quantity int64        `json:"quantity"`
	Context  models.JSONB `json:"context"`
}

// Charge debits the authenticated tenant for a metered service use
func (h *LedgerHandlers) Charge(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req ChargeRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	result, err := h.ledgerService.Charge(c.Request().Context(), tenantID, req.Service, req.Quantity, req.Context)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetBalance returns the authenticated tenant's balance, tariffs and metadata
func (h *LedgerHandlers) GetBalance(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	snapshot, err := h.ledgerService.GetBalance(c.Request().Context(), tenantID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// PaymentRequest represents an administrator-registered payment
type PaymentRequest struct {
	TenantID string          `json:"tenant_id"`
	Amount   decimal.Decimal `json:"amount"`
	Context  models.JSONB    `json:"context"`
}

// RegisterPayment credits a payment against a tenant's debt (admin only)
func (h *LedgerHandlers) RegisterPayment(c echo.Context) error {
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	newBalance, err := h.ledgerService.RegisterPayment(c.Request().Context(), req.TenantID, req.Amount, req.Context)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"new_balance": newBalance})
}

// AdjustmentRequest represents a direct balance correction
type AdjustmentRequest struct {
	TenantID string          `json:"tenant_id"`
	Delta    decimal.Decimal `json:"delta"`
	Reason   string          `json:"reason"`
}

// AdminAdjustment applies a signed balance correction (admin only)
func (h *LedgerHandlers) AdminAdjustment(c echo.Context) error {
	var req AdjustmentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	newBalance, err := h.ledgerService.AdminAdjustment(c.Request().Context(), req.TenantID, req.Delta, req.Reason)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"new_balance": newBalance})
}
