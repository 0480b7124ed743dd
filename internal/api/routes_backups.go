package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/handlers"
)

func registerBackupRoutes(r *gin.RouterGroup, handler *handlers.BackupHandler) {
	if r == nil || handler == nil {
		return
	}

	backups := r.Group("/backups")
	{
		backups.GET("", handler.List)
		backups.POST("", handler.Create)
		backups.GET("/stats", handler.Stats)
		backups.POST("/cleanup", handler.Cleanup)
		backups.GET("/:id", handler.Get)
		backups.DELETE("/:id", handler.Delete)
	}
}
