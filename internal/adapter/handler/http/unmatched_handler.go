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

// UnmatchedHandler exposes the quarantine of events that could not be placed.
type UnmatchedHandler struct {
	quarantine *usecase.QuarantineService
	logger     *zap.Logger
}

func NewUnmatchedHandler(quarantine *usecase.QuarantineService, logger *zap.Logger) *UnmatchedHandler {
	return &UnmatchedHandler{
		quarantine: quarantine,
		logger:     logger,
	}
}

func (h *UnmatchedHandler) List(c echo.Context) error {
	var page entity.PaginationParams
	if err := c.Bind(&page); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pagination")
	}

	events, meta, err := h.quarantine.List(c.Request().Context(), model.UnmatchedStatus(c.QueryParam("status")), page)
	if err != nil {
		return toAppError(err, "failed to list unmatched events")
	}
	return c.JSON(http.StatusOK, ListResponse{Data: events, Pagination: meta})
}

func (h *UnmatchedHandler) Resolve(c echo.Context) error {
	actor := auth.ActorOf(c, "api")
	result, err := h.quarantine.Resolve(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return toAppError(err, "failed to resolve unmatched event")
	}

	h.logger.Info("Unmatched event resolution attempted",
		zap.String("id", c.Param("id")),
		zap.String("actor", actor),
		zap.String("status", string(result.Status)))
	return c.JSON(http.StatusOK, result)
}

func (h *UnmatchedHandler) Discard(c echo.Context) error {
	if err := h.quarantine.Discard(c.Request().Context(), c.Param("id"), auth.ActorOf(c, "api")); err != nil {
		return toAppError(err, "failed to discard unmatched event")
	}
	return c.NoContent(http.StatusNoContent)
}
