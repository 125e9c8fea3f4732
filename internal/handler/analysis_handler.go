package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/jengzang/traffic-density-go/internal/analysis"
	"github.com/jengzang/traffic-density-go/internal/service"
	"github.com/jengzang/traffic-density-go/pkg/response"
)

// AnalysisHandler handles HTTP requests that run the image and video pipelines
type AnalysisHandler struct {
	service *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// AnalyzeImageRequest represents the request body for an image run
type AnalyzeImageRequest struct {
	Path     string `json:"path" binding:"required"`
	Location string `json:"location"`
}

// AnalyzeVideoRequest represents the request body for a video run
type AnalyzeVideoRequest struct {
	Path      string `json:"path" binding:"required"`
	Location  string `json:"location"`
	FrameSkip int    `json:"frame_skip"` // <= 0 uses the server default
}

// AnalyzeImage counts vehicles in a server-side image
// POST /api/v1/analysis/image
func (h *AnalysisHandler) AnalyzeImage(c *gin.Context) {
	var req AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	out, err := h.service.AnalyzeImage(c.Request.Context(), req.Path, req.Location)
	if err != nil {
		writeAnalysisError(c, err)
		return
	}

	response.Success(c, out)
}

// AnalyzeVideo samples a server-side video
// POST /api/v1/analysis/video
func (h *AnalysisHandler) AnalyzeVideo(c *gin.Context) {
	var req AnalyzeVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	out, err := h.service.AnalyzeVideo(c.Request.Context(), req.Path, req.FrameSkip, req.Location)
	if err != nil {
		writeAnalysisError(c, err)
		return
	}

	response.Success(c, out)
}

// writeAnalysisError sends a fixed message per error class. The detail goes to the request log only.
func writeAnalysisError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrOutsideInputDir):
		response.Forbidden(c, "Input is outside the input directory")
	case errors.Is(err, analysis.ErrNotFound):
		response.NotFound(c, "Input not found")
	case errors.Is(err, analysis.ErrOpen):
		response.UnprocessableEntity(c, "Input cannot be decoded")
	default:
		response.InternalError(c, "Analysis failed")
	}
}
