package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
	apperrors "github.com/2Raz/mnam-backend-sub001/pkg/errors"
)

// WebhookHandler receives channel manager callbacks. The body is read raw
// so the signature is checked over the exact bytes sent.
type WebhookHandler struct {
	processor *usecase.WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(processor *usecase.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// HandleBooking serves POST /webhooks/channex/:connection_id.
func (h *WebhookHandler) HandleBooking(c echo.Context) error {
	connectionID := c.Param("connection_id")

	body, err := readBody(c)
	if err != nil {
		return err
	}

	result, err := h.processor.HandleBooking(c.Request().Context(), connectionID, body, c.Request().Header)
	if err != nil {
		h.logger.Warn("Booking webhook failed",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return toAppError(err, "failed to process webhook")
	}

	return c.JSON(http.StatusOK, result)
}

// HandleHealth serves POST /webhooks/channex/:connection_id/health.
func (h *WebhookHandler) HandleHealth(c echo.Context) error {
	connectionID := c.Param("connection_id")

	body, err := readBody(c)
	if err != nil {
		return err
	}

	result, err := h.processor.HandleHealth(c.Request().Context(), connectionID, body, c.Request().Header)
	if err != nil {
		h.logger.Warn("Health webhook failed",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return toAppError(err, "failed to process health webhook")
	}

	return c.JSON(http.StatusOK, result)
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return nil, apperrors.InvalidArgument("error reading request body", err)
	}
	return body, nil
}
