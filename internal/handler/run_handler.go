package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/jengzang/traffic-density-go/internal/repository"
	"github.com/jengzang/traffic-density-go/internal/service"
	"github.com/jengzang/traffic-density-go/pkg/response"
)

// RunHandler handles HTTP requests for the analysis run ledger
type RunHandler struct {
	service *service.AnalysisService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.AnalysisService) *RunHandler {
	return &RunHandler{service: service}
}

// GetRun retrieves a run by ID
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			response.NotFound(c, "Run not found")
			return
		}
		_ = c.Error(err)
		response.InternalError(c, "Failed to get run")
		return
	}

	response.Success(c, run)
}

// ListRuns retrieves runs, newest first
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	status := c.Query("status")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	runs, err := h.service.ListRuns(status, limit, offset)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c, "Failed to list runs")
		return
	}

	response.Success(c, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}
