package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DisplayController changes the mode of a software display.
type DisplayController interface {
	Period() time.Duration
	SetPeriod(period time.Duration) error
}

type DisplayHandler struct {
	log     *zap.Logger
	display func() DisplayController // nil result: display is not controllable
}

type refreshRateBody struct {
	RefreshRateHz float64 `json:"refresh_rate_hz" binding:"required,gt=0,lte=1000"`
}

// NewDisplayHandler constructs a DisplayHandler. display is resolved per
// request since the display is opened lazily with the first choreographer.
func NewDisplayHandler(log *zap.Logger, display func() DisplayController) *DisplayHandler {
	return &DisplayHandler{log: log.Named("display"), display: display}
}

// GetRefreshRate handles GET /api/display/refresh-rate.
func (h *DisplayHandler) GetRefreshRate(c *gin.Context) {
	d := h.display()
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "display is not controllable"})
		return
	}

	period := d.Period()
	c.JSON(http.StatusOK, gin.H{
		"vsync_period_ns": period.Nanoseconds(),
		"refresh_rate_hz": float64(time.Second) / float64(period),
	})
}

// SetRefreshRate handles PUT /api/display/refresh-rate.
//
// Status Codes:
//   - 204 No Content → mode switched
//   - 400 Bad Request → invalid body
//   - 404 Not Found → display is not controllable (e.g. redis source)
func (h *DisplayHandler) SetRefreshRate(c *gin.Context) {
	var body refreshRateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	d := h.display()
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "display is not controllable"})
		return
	}

	period := time.Duration(float64(time.Second) / body.RefreshRateHz)
	if err := d.SetPeriod(period); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	h.log.Info("refresh rate set", zap.Float64("refresh_rate_hz", body.RefreshRateHz))
	c.Status(http.StatusNoContent)
}
