package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/traffic-density-go/internal/models"
	"github.com/jengzang/traffic-density-go/internal/service"
	"github.com/jengzang/traffic-density-go/pkg/response"
)

// HistoryHandler handles HTTP requests over the observation log
type HistoryHandler struct {
	service *service.HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

func bindFilter(c *gin.Context) (models.ObservationFilter, bool) {
	var filter models.ObservationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return filter, false
	}
	return filter, true
}

// ListObservations returns logged observations, newest last
// GET /api/v1/observations
func (h *HistoryHandler) ListObservations(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	rows, err := h.service.List(filter)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to read observation log")
		return
	}

	response.Success(c, gin.H{
		"observations": rows,
		"count":        len(rows),
	})
}

// GetPeak returns the observations with the highest total
// GET /api/v1/observations/peak
func (h *HistoryHandler) GetPeak(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	rows, err := h.service.Peak(filter)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to read observation log")
		return
	}

	response.Success(c, rows)
}

// GetDensityDistribution returns the number of observations per density level
// GET /api/v1/observations/density-distribution
func (h *HistoryHandler) GetDensityDistribution(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	dist, err := h.service.DensityDistribution(filter)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to read observation log")
		return
	}

	response.Success(c, dist)
}

// GetSummary returns aggregate figures over the log
// GET /api/v1/observations/summary
func (h *HistoryHandler) GetSummary(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	summary, err := h.service.Summary(filter)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to read observation log")
		return
	}

	response.Success(c, summary)
}
