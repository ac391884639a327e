package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edirooss/choreo/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChoreographersHandler struct {
	log     *zap.Logger
	summary *service.SummaryService
}

// NewChoreographersHandler constructs a ChoreographersHandler instance.
func NewChoreographersHandler(log *zap.Logger, src service.SnapshotSource) *ChoreographersHandler {
	return &ChoreographersHandler{
		log:     log.Named("choreographers"),
		summary: service.NewSummaryService(log, src, service.SummaryOptions{TTL: 250 * time.Millisecond}),
	}
}

// GetList handles GET /api/choreographers.
//
// Behavior:
//   - Returns one entry per event loop that has a choreographer.
//   - ?force=1 bypasses the snapshot cache.
//   - Adds `X-Total-Count`, `X-Cache` and `X-Summary-Generated-At` headers.
func (h *ChoreographersHandler) GetList(c *gin.Context) {
	if c.Query("force") == "1" {
		h.summary.Invalidate()
	}
	res := h.summary.Get()

	cache := "MISS"
	if res.CacheHit {
		cache = "HIT"
	}
	c.Header("X-Total-Count", strconv.Itoa(len(res.Data)))
	c.Header("X-Cache", cache)
	c.Header("X-Summary-Generated-At", res.GeneratedAt.UTC().Format(time.RFC3339Nano))
	c.JSON(http.StatusOK, res.Data)
}
