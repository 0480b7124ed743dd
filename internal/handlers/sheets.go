package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/sheets"
	appErrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/response"
)

// SheetsHandler checks that the configured spreadsheet is reachable.
type SheetsHandler struct {
	client *sheets.Client
}

// NewSheetsHandler constructs a SheetsHandler. A nil client behaves as unconfigured.
func NewSheetsHandler(client *sheets.Client) *SheetsHandler {
	return &SheetsHandler{client: client}
}

// GET /api/sheets/probe
func (h *SheetsHandler) Probe(c *gin.Context) {
	if h.client == nil || !h.client.Configured() {
		response.Error(c, appErrors.ErrNotConfigured.WithDetails("spreadsheet id and api key are required"))
		return
	}

	result, err := h.client.Probe(c.Request.Context())
	if err != nil {
		var statusErr *sheets.StatusError
		switch {
		case errors.Is(err, sheets.ErrNotConfigured):
			response.Error(c, appErrors.ErrNotConfigured)
		case errors.As(err, &statusErr):
			response.Error(c, appErrors.ErrUpstream.WithDetails(statusErr.Error()).WithInternal(err))
		default:
			response.Error(c, appErrors.ErrUpstream.WithInternal(err))
		}
		return
	}
	response.Success(c, http.StatusOK, result)
}
