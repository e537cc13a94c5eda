package http

import (
	"errors"
	"net/http"
	"time"

	"golang-stock-recommender/internal/api/dto"
	"golang-stock-recommender/internal/api/service"
	"golang-stock-recommender/pkg/common"
	"golang-stock-recommender/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SnapshotHandler handles HTTP requests for recommendation snapshots.
type SnapshotHandler struct {
	snapshotService service.SnapshotService
	logger          *logger.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotService service.SnapshotService, logger *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService, logger: logger}
}

// RegisterRoutes registers the snapshot routes to the Echo group.
func (h *SnapshotHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:date", h.GetSnapshot)
	g.GET("/:date/items", h.GetItems)
}

// GetSnapshot returns the success snapshot for a date, or 404 when none is
// stored.
func (h *SnapshotHandler) GetSnapshot(c echo.Context) error {
	asOfDate, err := time.Parse(common.DateFormat, c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid date, expected YYYY-MM-DD"})
	}

	snapshot, err := h.snapshotService.GetSnapshotByDate(c.Request().Context(), asOfDate)
	if err != nil {
		if errors.Is(err, service.ErrSnapshotNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "No snapshot for date"})
		}
		h.logger.Error("Failed to get snapshot", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}

	return c.JSON(http.StatusOK, snapshot)
}

// GetItems returns the ranked items for a date, optionally filtered by
// ticker.
func (h *SnapshotHandler) GetItems(c echo.Context) error {
	asOfDate, err := time.Parse(common.DateFormat, c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid date, expected YYYY-MM-DD"})
	}

	ticker := c.QueryParam("ticker")
	if ticker == "" {
		snapshot, err := h.snapshotService.GetSnapshotByDate(c.Request().Context(), asOfDate)
		if err != nil {
			if errors.Is(err, service.ErrSnapshotNotFound) {
				return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "No snapshot for date"})
			}
			h.logger.Error("Failed to get snapshot items", logger.ErrorField(err))
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
		}
		return c.JSON(http.StatusOK, snapshot.Items)
	}

	items, err := h.snapshotService.GetItemsByDateAndTicker(c.Request().Context(), asOfDate, ticker)
	if err != nil {
		if errors.Is(err, service.ErrSnapshotNotFound) {
			return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "No matching items"})
		}
		h.logger.Error("Failed to get snapshot items", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}

	return c.JSON(http.StatusOK, items)
}
