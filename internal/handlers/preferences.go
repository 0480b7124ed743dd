package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/services"
	appErrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/response"
)

const maxPreferenceBody = 64 << 10

// PreferencesHandler reads and writes the dashboard's stored JSON blobs.
type PreferencesHandler struct {
	svc *services.PreferencesService
}

// NewPreferencesHandler constructs a PreferencesHandler.
func NewPreferencesHandler(svc *services.PreferencesService) (*PreferencesHandler, error) {
	if svc == nil {
		return nil, errors.New("preferences handler: preferences service is required")
	}
	return &PreferencesHandler{svc: svc}, nil
}

// GET /api/preferences
func (h *PreferencesHandler) Keys(c *gin.Context) {
	response.Success(c, http.StatusOK, services.PreferenceKeys())
}

// GET /api/preferences/:key
func (h *PreferencesHandler) Get(c *gin.Context) {
	value, err := h.svc.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, value)
}

// PUT /api/preferences/:key
// The body is the raw JSON document to store.
func (h *PreferencesHandler) Put(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPreferenceBody+1))
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("unable to read request body"))
		return
	}

	value, err := h.svc.Put(c.Request.Context(), c.Param("key"), json.RawMessage(body))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, value)
}

// DELETE /api/preferences/:key
func (h *PreferencesHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
