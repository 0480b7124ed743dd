package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/veloigp/internal/realtime"
)

func TestRealtimeHandlerRejectsUnknownStream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewRealtimeHandler(realtime.NewHub(), realtime.StreamLoading)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{gin.Param{Key: "stream", Value: realtime.StreamBackups}}
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/backups", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown stream backups")
}

func TestRealtimeHandlerWithoutHub(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewRealtimeHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRealtimeHandlerDefaultsStreams(t *testing.T) {
	handler := NewRealtimeHandler(realtime.NewHub(), " ", "")
	require.ElementsMatch(t, realtime.DefaultStreams, handler.allowedStreams)
}

func TestGatherStreamsCombinesSources(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{gin.Param{Key: "stream", Value: " Loading "}}
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/loading?stream=backups&streams=loading,%20BACKUPS,", nil)

	require.Equal(t, []string{"backups", "loading"}, gatherStreams(c))
}
