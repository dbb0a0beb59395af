package handlers

import (
	"net/http"

	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles tenant administration HTTP requests
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

// CreateTenant provisions a tenant and returns its API key. The key is
// shown exactly once; only its hash is stored.
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	var req services.CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	tenant, apiKey, err := h.tenantService.Create(c.Request().Context(), &req)
	if err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"tenant":  tenant,
		"api_key": apiKey,
	})
}

// ListTenantsRequest represents query parameters for listing tenants
type ListTenantsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListTenants returns tenant records, paginated
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	var req ListTenantsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "invalid query parameters")
	}

	tenants, err := h.tenantService.List(c.Request().Context(), req.Limit, req.Offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tenants": tenants})
}

// DeleteTenant removes a tenant; its transaction history is retained
func (h *TenantHandlers) DeleteTenant(c echo.Context) error {
	id := c.Param("id")
	if err := h.tenantService.Delete(c.Request().Context(), id); err != nil {
		return common.RespondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetTariffs replaces a tenant's tariff table
func (h *TenantHandlers) SetTariffs(c echo.Context) error {
	id := c.Param("id")

	var tariffs models.TariffTable
	if err := c.Bind(&tariffs); err != nil {
		return common.SendValidationError(c, "body", "invalid tariff table")
	}

	if err := h.tenantService.SetTariffs(c.Request().Context(), id, tariffs); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tariffs": tariffs})
}

// UpdateMetadata replaces a tenant's display metadata
func (h *TenantHandlers) UpdateMetadata(c echo.Context) error {
	id := c.Param("id")

	var metadata models.JSONB
	if err := c.Bind(&metadata); err != nil {
		return common.SendValidationError(c, "body", "invalid metadata")
	}

	if err := h.tenantService.UpdateMetadata(c.Request().Context(), id, metadata); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"metadata": metadata})
}

// RotateAPIKey invalidates a tenant's credential and returns the new one
func (h *TenantHandlers) RotateAPIKey(c echo.Context) error {
	id := c.Param("id")

	apiKey, err := h.tenantService.RotateAPIKey(c.Request().Context(), id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"api_key": apiKey})
}

// ExportTenants returns every tenant record as a JSON backup
func (h *TenantHandlers) ExportTenants(c echo.Context) error {
	tenants, err := h.tenantService.Export(c.Request().Context())
	if err != nil {
		return common.RespondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tenants.json"`)
	return c.JSON(http.StatusOK, map[string]interface{}{"tenants": tenants})
}
