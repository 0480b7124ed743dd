package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/handlers"
)

func registerDashboardRoutes(r *gin.RouterGroup, handler *handlers.DashboardHandler) {
	if r == nil || handler == nil {
		return
	}

	dashboard := r.Group("/dashboard")
	{
		dashboard.GET("/operators", handler.Operators)
		dashboard.GET("/calls", handler.Calls)
		dashboard.GET("/metrics", handler.Metrics)
		dashboard.GET("/queues", handler.Queues)
	}

	r.GET("/reports/pbx", handler.Report)
	r.POST("/cache/clear", handler.ClearCache)
	r.GET("/cache/stats", handler.CacheStats)
}

func registerRefreshRoutes(r *gin.RouterGroup, handler *handlers.RefreshHandler) {
	if r == nil || handler == nil {
		return
	}

	refresh := r.Group("/reports/refresh")
	{
		refresh.GET("", handler.State)
		refresh.POST("", handler.Start)
		refresh.DELETE("", handler.Reset)
		refresh.POST("/retry", handler.Retry)
	}
}
