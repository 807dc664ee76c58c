package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetAnalytics(c echo.Context) error {
	summary, err := h.service.Summary(c.Request().Context(), c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "analytics": summary})
}
