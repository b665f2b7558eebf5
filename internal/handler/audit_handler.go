package handler

import (
	"net/http"

	"tourinvoice/internal/middleware"
	"tourinvoice/internal/service"
	"tourinvoice/pkg/pagination"
	"tourinvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs", middleware.RequireAuth())
	{
		group.GET("", h.GetAuditLogs)
		group.GET("/invoices/:id", h.GetInvoiceAuditLogs)
	}
}

// GetAuditLogs lists the caller's invoice events
// @Summary      Get audit logs
// @Description  Retrieves the caller's submit, render and reset events, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page[service.AuditLogResponse]}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, total, p)))
}

// GetInvoiceAuditLogs returns the history of one submitted invoice
// @Summary      Get invoice history
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.AuditLogResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/audit-logs/invoices/{id} [get]
func (h *AuditHandler) GetInvoiceAuditLogs(c *gin.Context) {
	logs, err := h.auditService.GetInvoiceAuditLogs(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}
