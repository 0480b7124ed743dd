package handlers

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/realtime"
	"github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into WebSocket streams.
type RealtimeHandler struct {
	hub            *realtime.Hub
	allowedStreams []string
}

// NewRealtimeHandler constructs a realtime handler restricted to streams,
// or to the default streams when none are given.
func NewRealtimeHandler(hub *realtime.Hub, streams ...string) *RealtimeHandler {
	var allowed []string
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream != "" {
			allowed = append(allowed, stream)
		}
	}
	if len(allowed) == 0 {
		allowed = slices.Clone(realtime.DefaultStreams)
	}
	return &RealtimeHandler{hub: hub, allowedStreams: allowed}
}

// GET /ws?streams=loading,backups
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	streams := gatherStreams(c)
	for _, stream := range streams {
		if !slices.Contains(h.allowedStreams, stream) {
			response.Error(c, errors.NewBadRequest("unknown stream "+stream))
			return
		}
	}
	h.hub.Serve(streams, c.Writer, c.Request)
}

func gatherStreams(c *gin.Context) []string {
	var streams []string

	if pathStream := normalizeStream(c.Param("stream")); pathStream != "" {
		streams = append(streams, pathStream)
	}

	for _, queryStream := range c.QueryArray("stream") {
		if normalized := normalizeStream(queryStream); normalized != "" {
			streams = append(streams, normalized)
		}
	}

	if raw := c.Query("streams"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if normalized := normalizeStream(part); normalized != "" {
				streams = append(streams, normalized)
			}
		}
	}

	slices.Sort(streams)
	return slices.Compact(streams)
}

func normalizeStream(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
