package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/pkg/response"
)

// RefreshHandler drives the tracked background report refresh.
type RefreshHandler struct {
	svc *services.RefreshService
}

// NewRefreshHandler constructs a RefreshHandler.
func NewRefreshHandler(svc *services.RefreshService) (*RefreshHandler, error) {
	if svc == nil {
		return nil, errors.New("refresh handler: refresh service is required")
	}
	return &RefreshHandler{svc: svc}, nil
}

// GET /api/reports/refresh
func (h *RefreshHandler) State(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.State())
}

// POST /api/reports/refresh
func (h *RefreshHandler) Start(c *gin.Context) {
	var req dateRange
	if !bindAndValidate(c, &req) {
		return
	}
	start, end := req.parse()

	state, err := h.svc.Start(c.Request.Context(), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, state)
}

// POST /api/reports/refresh/retry
func (h *RefreshHandler) Retry(c *gin.Context) {
	state, err := h.svc.Retry(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusAccepted
	if !state.IsLoading {
		status = http.StatusOK
	}
	response.Success(c, status, state)
}

// DELETE /api/reports/refresh
func (h *RefreshHandler) Reset(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.Reset())
}
