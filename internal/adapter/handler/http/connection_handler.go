package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

type ConnectionHandler struct {
	connections *usecase.ConnectionService
	logger      *zap.Logger
}

func NewConnectionHandler(connections *usecase.ConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		logger:      logger,
	}
}

func (h *ConnectionHandler) CreateConnection(c echo.Context) error {
	var req CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	conn, err := h.connections.Create(c.Request().Context(), usecase.CreateConnectionInput{
		ProjectID:     req.ProjectID,
		Provider:      req.Provider,
		PropertyID:    req.PropertyID,
		GroupID:       req.GroupID,
		APIKey:        req.APIKey,
		WebhookSecret: req.WebhookSecret,
		WebhookURL:    req.WebhookURL,
	})
	if err != nil {
		return toAppError(err, "failed to create connection")
	}

	h.logger.Info("Channel connection created",
		zap.String("connection_id", conn.ID),
		zap.String("property_id", conn.PropertyID))
	return c.JSON(http.StatusCreated, conn)
}

func (h *ConnectionHandler) GetConnection(c echo.Context) error {
	conn, err := h.connections.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toAppError(err, "failed to get connection")
	}
	return c.JSON(http.StatusOK, conn)
}

func (h *ConnectionHandler) DeleteConnection(c echo.Context) error {
	if err := h.connections.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return toAppError(err, "failed to delete connection")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConnectionHandler) CreateMapping(c echo.Context) error {
	var req CreateMappingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	mapping, err := h.connections.CreateMapping(c.Request().Context(), c.Param("id"), usecase.CreateMappingInput{
		UnitID:     req.UnitID,
		RoomTypeID: req.RoomTypeID,
		RatePlanID: req.RatePlanID,
	})
	if err != nil {
		return toAppError(err, "failed to create mapping")
	}
	return c.JSON(http.StatusCreated, mapping)
}

func (h *ConnectionHandler) DeactivateMapping(c echo.Context) error {
	if err := h.connections.DeactivateMapping(c.Request().Context(), c.Param("id")); err != nil {
		return toAppError(err, "failed to deactivate mapping")
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestFullSync schedules a full push for every active mapping of the connection.
func (h *ConnectionHandler) RequestFullSync(c echo.Context) error {
	items, err := h.connections.RequestFullSync(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toAppError(err, "failed to schedule full sync")
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"enqueued": len(items),
		"items":    items,
	})
}
