package handler

import (
	"net/http"

	"github.com/edirooss/choreo/internal/service"
	"github.com/gin-gonic/gin"
)

// FrameStatsProvider exposes the frame statistics client.
type FrameStatsProvider interface {
	Snapshot() service.FrameStats
}

// Frames handles GET /api/frames.
func Frames(p FrameStatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Snapshot())
	}
}
