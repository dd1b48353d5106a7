package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
	apperrors "github.com/2Raz/mnam-backend-sub001/pkg/errors"
)

type RateStateHandler struct {
	limiter *usecase.RateLimiter
	logger  *zap.Logger
}

func NewRateStateHandler(limiter *usecase.RateLimiter, logger *zap.Logger) *RateStateHandler {
	return &RateStateHandler{
		limiter: limiter,
		logger:  logger,
	}
}

// GetRateState returns the refilled token buckets and any active pause for a property.
func (h *RateStateHandler) GetRateState(c echo.Context) error {
	state, err := h.limiter.State(c.Request().Context(), c.Param("property_id"))
	if err != nil {
		return toAppError(err, "failed to read rate state")
	}
	if state == nil {
		return apperrors.NotFound("no rate state for property", nil)
	}
	return c.JSON(http.StatusOK, state)
}
