package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/pkg/response"
)

// DashboardHandler serves the cached dashboard datasets and PBX reports.
type DashboardHandler struct {
	data *services.DataService
	now  func() time.Time
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(data *services.DataService) (*DashboardHandler, error) {
	if data == nil {
		return nil, errors.New("dashboard handler: data service is required")
	}
	return &DashboardHandler{data: data, now: time.Now}, nil
}

// GET /api/dashboard/operators
func (h *DashboardHandler) Operators(c *gin.Context) {
	result := h.data.Operators(c.Request.Context())
	writeResult(c, result, len(result.Data), h.now())
}

// GET /api/dashboard/calls
func (h *DashboardHandler) Calls(c *gin.Context) {
	result := h.data.Calls(c.Request.Context())
	writeResult(c, result, len(result.Data), h.now())
}

// GET /api/dashboard/metrics
func (h *DashboardHandler) Metrics(c *gin.Context) {
	writeResult(c, h.data.Metrics(c.Request.Context()), 0, h.now())
}

// GET /api/dashboard/queues
func (h *DashboardHandler) Queues(c *gin.Context) {
	result := h.data.Queues(c.Request.Context())
	writeResult(c, result, len(result.Data), h.now())
}

// GET /api/reports/pbx?start=&end=
func (h *DashboardHandler) Report(c *gin.Context) {
	var query dateRange
	if !bindQuery(c, &query) {
		return
	}
	start, end := query.parse()

	result, err := h.data.Report(c.Request.Context(), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeResult(c, result, 0, h.now())
}

// POST /api/cache/clear
func (h *DashboardHandler) ClearCache(c *gin.Context) {
	entries, _, _ := h.data.CacheStats()
	h.data.ClearCache()
	response.Success(c, http.StatusOK, gin.H{"cleared": entries})
}

// GET /api/cache/stats
func (h *DashboardHandler) CacheStats(c *gin.Context) {
	entries, hits, misses := h.data.CacheStats()
	response.Success(c, http.StatusOK, gin.H{
		"entries": entries,
		"hits":    hits,
		"misses":  misses,
	})
}

func writeResult[T any](c *gin.Context, result services.Result[T], total int, now time.Time) {
	generated := now.UTC()
	response.SuccessWithMeta(c, http.StatusOK, result.Data, &response.Meta{
		Source:      string(result.Source),
		Reason:      string(result.Reason),
		Total:       total,
		GeneratedAt: &generated,
	})
}
