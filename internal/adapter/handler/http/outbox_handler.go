package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
	apperrors "github.com/2Raz/mnam-backend-sub001/pkg/errors"
)

type OutboxHandler struct {
	outbox *usecase.OutboxService
	logger *zap.Logger
}

func NewOutboxHandler(outbox *usecase.OutboxService, logger *zap.Logger) *OutboxHandler {
	return &OutboxHandler{
		outbox: outbox,
		logger: logger,
	}
}

// Enqueue schedules a price, availability or full sync push for a unit.
func (h *OutboxHandler) Enqueue(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	from, to := parseOptionalDate(req.DateFrom), parseOptionalDate(req.DateTo)
	if from != nil && to != nil && !to.After(*from) {
		return apperrors.InvalidArgument("date_to must be after date_from", nil)
	}

	items, err := h.outbox.EnqueueForUnit(c.Request().Context(), model.OutboxEventType(req.EventType), req.UnitID, from, to)
	if err != nil {
		return toAppError(err, "failed to enqueue sync")
	}

	h.logger.Info("Outbound sync enqueued",
		zap.String("unit_id", req.UnitID),
		zap.String("event_type", req.EventType),
		zap.Int("items", len(items)))
	return c.JSON(http.StatusAccepted, echo.Map{
		"enqueued": len(items),
		"items":    items,
	})
}

func (h *OutboxHandler) ListFailed(c echo.Context) error {
	var page entity.PaginationParams
	if err := c.Bind(&page); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid pagination")
	}

	items, meta, err := h.outbox.ListFailed(c.Request().Context(), page)
	if err != nil {
		return toAppError(err, "failed to list outbox items")
	}
	return c.JSON(http.StatusOK, ListResponse{Data: items, Pagination: meta})
}

func (h *OutboxHandler) Retry(c echo.Context) error {
	item, err := h.outbox.RetryFailed(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toAppError(err, "failed to retry outbox item")
	}
	return c.JSON(http.StatusOK, item)
}
