package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/middleware/auth"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

type AlertHandler struct {
	alerts *usecase.AlertService
	logger *zap.Logger
}

func NewAlertHandler(alerts *usecase.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger,
	}
}

func (h *AlertHandler) List(c echo.Context) error {
	var page entity.PaginationParams
	if err := c.Bind(&page); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pagination")
	}

	alerts, meta, err := h.alerts.List(c.Request().Context(), model.AlertStatus(c.QueryParam("status")), page)
	if err != nil {
		return toAppError(err, "failed to list alerts")
	}
	return c.JSON(http.StatusOK, ListResponse{Data: alerts, Pagination: meta})
}

func (h *AlertHandler) Acknowledge(c echo.Context) error {
	alert, err := h.alerts.Acknowledge(c.Request().Context(), c.Param("id"), auth.ActorOf(c, "api"))
	if err != nil {
		return toAppError(err, "failed to acknowledge alert")
	}
	return c.JSON(http.StatusOK, alert)
}

func (h *AlertHandler) Resolve(c echo.Context) error {
	alert, err := h.alerts.Resolve(c.Request().Context(), c.Param("id"), auth.ActorOf(c, "api"))
	if err != nil {
		return toAppError(err, "failed to resolve alert")
	}
	return c.JSON(http.StatusOK, alert)
}
