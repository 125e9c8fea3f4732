package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/config"
	"github.com/jengzang/traffic-density-go/internal/handler"
	"github.com/jengzang/traffic-density-go/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRouter
type Handlers struct {
	Analysis *handler.AnalysisHandler
	History  *handler.HistoryHandler
	Runs     *handler.RunHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers, limiter *middleware.RateLimiter, logger *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Traffic density API is running",
		})
	}
	r.GET("/health", health)

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter))
	{
		api.GET("/health", health)

		// 分析接口
		analysis := api.Group("/analysis")
		analysis.Use(middleware.Auth(cfg.JWTSecret))
		{
			analysis.POST("/image", h.Analysis.AnalyzeImage)
			analysis.POST("/video", h.Analysis.AnalyzeVideo)
		}

		// 历史数据接口
		observations := api.Group("/observations")
		{
			observations.GET("", h.History.ListObservations)
			observations.GET("/peak", h.History.GetPeak)
			observations.GET("/density-distribution", h.History.GetDensityDistribution)
			observations.GET("/summary", h.History.GetSummary)
		}

		// 分析记录接口
		runs := api.Group("/runs")
		{
			runs.GET("", h.Runs.ListRuns)
			runs.GET("/:id", h.Runs.GetRun)
		}
	}

	return r
}
