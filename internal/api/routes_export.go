package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/handlers"
)

func registerExportRoutes(r *gin.RouterGroup, handler *handlers.ExportHandler) {
	if r == nil || handler == nil {
		return
	}

	r.POST("/export", handler.Export)
	r.POST("/export/validate", handler.Validate)
}

func registerPreferenceRoutes(r *gin.RouterGroup, handler *handlers.PreferencesHandler) {
	if r == nil || handler == nil {
		return
	}

	prefs := r.Group("/preferences")
	{
		prefs.GET("", handler.Keys)
		prefs.GET("/:key", handler.Get)
		prefs.PUT("/:key", handler.Put)
		prefs.DELETE("/:key", handler.Delete)
	}
}

func registerSheetsRoutes(r *gin.RouterGroup, handler *handlers.SheetsHandler) {
	if r == nil || handler == nil {
		return
	}

	r.GET("/sheets/probe", handler.Probe)
}
