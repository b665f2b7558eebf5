package handler

import (
	"net/http"
	"os"

	"tourinvoice/internal/middleware"
	"tourinvoice/internal/model"
	"tourinvoice/internal/service"
	"tourinvoice/pkg/pagination"
	"tourinvoice/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	log            *zap.Logger
}

func NewInvoiceHandler(invoiceService service.InvoiceService, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, log: log}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices", middleware.RequireAuth())
	{
		invoices.POST("/validate", h.ValidateInvoice)
		invoices.POST("/render", h.RenderInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/pdf", h.DownloadInvoice)
	}
}

// ValidateInvoice checks a complete document without storing it
// @Summary      Validate invoice
// @Description  Runs every validation check and returns all violations
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      model.InvoiceDocument  true  "Invoice document"
// @Success      200      {object}  response.Response{data=validator.Result}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/validate [post]
func (h *InvoiceHandler) ValidateInvoice(c *gin.Context) {
	var doc model.InvoiceDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	res := h.invoiceService.Validate(c.Request.Context(), doc, middleware.UserID(c))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// RenderInvoice validates a document and streams its PDF report
// @Summary      Render invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      application/pdf
// @Param        payload  body      model.InvoiceDocument  true  "Invoice document"
// @Success      200      {file}    binary
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/invoices/render [post]
func (h *InvoiceHandler) RenderInvoice(c *gin.Context) {
	var doc model.InvoiceDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}
	path, err := h.invoiceService.RenderToTempFile(c.Request.Context(), doc, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.streamPDF(c, path)
}

// ListInvoices returns the caller's submitted invoices
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page[service.InvoiceSummary]}
// @Failure      500    {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.invoiceService.List(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(invoices, total, p)))
}

// GetInvoice returns one submitted invoice with its document
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	detail, err := h.invoiceService.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// DownloadInvoice streams the PDF report of a submitted invoice
// @Summary      Download invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadInvoice(c *gin.Context) {
	path, err := h.invoiceService.RenderStoredToTempFile(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.streamPDF(c, path)
}

// streamPDF sends the rendered file and removes it once the response is written.
func (h *InvoiceHandler) streamPDF(c *gin.Context, path string) {
	defer func() {
		if err := os.Remove(path); err != nil {
			h.log.Warn("failed to remove rendered invoice", zap.String("path", path), zap.Error(err))
		}
	}()
	c.FileAttachment(path, "tour-invoice.pdf")
}
