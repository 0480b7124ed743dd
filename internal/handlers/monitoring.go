package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/pkg/response"
)

// MonitoringHandler surfaces the in-process monitoring summary.
type MonitoringHandler struct {
	module          *monitoring.Module
	metricsEndpoint string
}

// NewMonitoringHandler constructs a monitoring handler. Returns nil when monitoring is disabled.
func NewMonitoringHandler(module *monitoring.Module, metricsEndpoint string) *MonitoringHandler {
	if module == nil {
		return nil
	}
	endpoint := strings.TrimSpace(metricsEndpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return &MonitoringHandler{module: module, metricsEndpoint: endpoint}
}

// GET /api/monitoring/summary
func (h *MonitoringHandler) Summary(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"summary": monitoring.Snapshot(),
		"prometheus": gin.H{
			"endpoint": h.metricsEndpoint,
		},
	})
}
