package handlers

import (
	"net/http"
	"time"

	"wordledger/internal/common"
	"wordledger/internal/models"
	"wordledger/internal/repositories"
	"wordledger/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditHandlers handles transaction log queries, exports and purges
type AuditHandlers struct {
	auditService services.AuditService
	opsRepo      repositories.OpsLogRepository
}

func NewAuditHandlers(auditService services.AuditService, opsRepo repositories.OpsLogRepository) *AuditHandlers {
	return &AuditHandlers{
		auditService: auditService,
		opsRepo:      opsRepo,
	}
}

// HistoryRequest represents pagination query parameters
type HistoryRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// OwnHistory returns the authenticated tenant's transactions,
// most recent first
func (h *AuditHandlers) OwnHistory(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req HistoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "invalid query parameters")
	}

	transactions, err := h.auditService.History(c.Request().Context(), tenantID, req.Limit, req.Offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// TenantHistory returns any tenant's transactions (admin only).
// History survives tenant deletion, so no existence check is made.
func (h *AuditHandlers) TenantHistory(c echo.Context) error {
	var req HistoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "invalid query parameters")
	}

	transactions, err := h.auditService.History(c.Request().Context(), c.Param("tenant_id"), req.Limit, req.Offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// ListRequest represents transaction log filter query parameters
type ListRequest struct {
	TenantID string `query:"tenant_id"`
	Kind     string `query:"kind"`
	Service  string `query:"service"`
	Start    string `query:"start"`
	End      string `query:"end"`
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
}

// ListAll returns transactions across all tenants (admin only)
func (h *AuditHandlers) ListAll(c echo.Context) error {
	var req ListRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "invalid query parameters")
	}

	filters := &models.TransactionFilters{Limit: req.Limit, Offset: req.Offset}
	if req.TenantID != "" {
		filters.TenantID = &req.TenantID
	}
	if req.Kind != "" {
		filters.Kind = &req.Kind
	}
	if req.Service != "" {
		filters.Service = &req.Service
	}
	if req.Start != "" {
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			return common.SendValidationError(c, "start", "must be RFC3339")
		}
		filters.Start = &start
	}
	if req.End != "" {
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			return common.SendValidationError(c, "end", "must be RFC3339")
		}
		filters.End = &end
	}

	transactions, err := h.auditService.List(c.Request().Context(), filters)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// DeleteRangeRequest represents a timestamp-range purge
type DeleteRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DeleteRange purges transactions within [start, end] (admin only)
func (h *AuditHandlers) DeleteRange(c echo.Context) error {
	var req DeleteRangeRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return common.SendValidationError(c, "start", "must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return common.SendValidationError(c, "end", "must be RFC3339")
	}

	deleted, err := h.auditService.DeleteRange(c.Request().Context(), start, end)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// DeleteByTenantRequest identifies a tenant whose history to purge
type DeleteByTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// DeleteByTenant purges one tenant's transactions (admin only)
func (h *AuditHandlers) DeleteByTenant(c echo.Context) error {
	var req DeleteByTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	deleted, err := h.auditService.DeleteByTenant(c.Request().Context(), req.TenantID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// DeleteByServiceRequest identifies a service whose records to purge
type DeleteByServiceRequest struct {
	Service string `json:"service"`
}

// DeleteByService purges transactions for one service (admin only)
func (h *AuditHandlers) DeleteByService(c echo.Context) error {
	var req DeleteByServiceRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	deleted, err := h.auditService.DeleteByService(c.Request().Context(), req.Service)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// Reset empties the transaction log (admin only)
func (h *AuditHandlers) Reset(c echo.Context) error {
	deleted, err := h.auditService.Reset(c.Request().Context())
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// ExportCSV streams the full transaction log as CSV (admin only)
func (h *AuditHandlers) ExportCSV(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="transactions.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return h.auditService.WriteCSV(c.Request().Context(), c.Response())
}

// Backup uploads a CSV export to object storage (admin only)
func (h *AuditHandlers) Backup(c echo.Context) error {
	objectName, err := h.auditService.Backup(c.Request().Context())
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"object": objectName})
}

// ListOps returns the privileged-operations trail (admin only)
func (h *AuditHandlers) ListOps(c echo.Context) error {
	var req HistoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	entries, err := h.opsRepo.List(c.Request().Context(), limit, offset)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"operations": entries})
}
