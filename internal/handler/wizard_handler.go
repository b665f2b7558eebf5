package handler

import (
	"net/http"

	"tourinvoice/internal/middleware"
	"tourinvoice/internal/service"
	"tourinvoice/internal/wizard"
	"tourinvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

type WizardHandler struct {
	wizardService service.WizardService
}

func NewWizardHandler(wizardService service.WizardService) *WizardHandler {
	return &WizardHandler{wizardService: wizardService}
}

func (h *WizardHandler) RegisterRoutes(router *gin.RouterGroup) {
	w := router.Group("/api/wizard", middleware.RequireAuth())
	{
		w.GET("", h.GetWizard)
		w.PUT("/steps/:step", h.MergeStep)
		w.DELETE("", h.ResetWizard)
		w.POST("/submit", h.Submit)
	}
}

// GetWizard returns the caller's in-progress document
// @Summary      Get wizard document
// @Description  Returns the in-progress invoice document of the authenticated user, resuming it from storage if needed
// @Tags         wizard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.WizardResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/wizard [get]
func (h *WizardHandler) GetWizard(c *gin.Context) {
	res, err := h.wizardService.GetSnapshot(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// MergeStep merges one wizard step into the document
// @Summary      Submit wizard step
// @Description  Replaces the keys owned by the step (employee, tourSummary, bills, expenses) and recomputes derived values
// @Tags         wizard
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        step     path      string  true  "Step id"  Enums(employee, tourSummary, bills, expenses)
// @Param        payload  body      object  true  "Step payload"
// @Success      200      {object}  response.Response{data=service.WizardResponse}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/wizard/steps/{step} [put]
func (h *WizardHandler) MergeStep(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.wizardService.MergeStep(c.Request.Context(), middleware.UserID(c), wizard.StepID(c.Param("step")), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ResetWizard discards the caller's in-progress document
// @Summary      Reset wizard
// @Tags         wizard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.WizardResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/wizard [delete]
func (h *WizardHandler) ResetWizard(c *gin.Context) {
	res, err := h.wizardService.Reset(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Submit validates and stores the wizard document
// @Summary      Submit invoice
// @Description  Validates the wizard document, stores it and starts a new wizard session
// @Tags         wizard
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  response.Response{data=service.InvoiceSummary}
// @Failure      422  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/wizard/submit [post]
func (h *WizardHandler) Submit(c *gin.Context) {
	summary, err := h.wizardService.Submit(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, summary))
}
