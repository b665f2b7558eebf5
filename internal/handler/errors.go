package handler

import (
	"errors"
	"net/http"

	"tourinvoice/internal/render"
	"tourinvoice/internal/service"
	"tourinvoice/internal/validator"
	"tourinvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the response envelope. Any error can
// also carry the notice that the caller's wizard session was restarted empty.
func respondError(c *gin.Context, err error) {
	var (
		failed *validator.ValidationFailed
		rerr   *render.RenderError
		status int
		res    response.Response
	)
	switch {
	case errors.As(err, &failed):
		status = http.StatusUnprocessableEntity
		res = response.ValidationError(status, failed.Errors)
	case service.IsBadRequest(err):
		status = http.StatusBadRequest
		res = response.Error(status, err.Error())
	case errors.Is(err, service.ErrInvoiceNotFound):
		status = http.StatusNotFound
		res = response.Error(status, err.Error())
	case errors.As(err, &rerr):
		status = http.StatusInternalServerError
		res = response.Error(status, "Failed to render invoice: "+rerr.Error())
	default:
		_ = c.Error(err)
		status = http.StatusInternalServerError
		res = response.Error(status, err.Error())
	}
	res.StateLost = service.IsStateLost(err)
	c.JSON(status, res)
}
