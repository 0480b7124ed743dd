package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/handlers"
)

func registerRealtimeRoutes(r *gin.Engine, handler *handlers.RealtimeHandler) {
	if r == nil || handler == nil {
		return
	}

	r.GET("/ws", handler.Stream)
	r.GET("/ws/:stream", handler.Stream)
}
