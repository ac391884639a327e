package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LimitInFlight caps the requests handled at once by the routes it guards.
// Requests above the cap are rejected with 429 instead of queueing behind a
// display mode switch.
//
//	display := r.Group("/api/display", LimitInFlight(log, 4))
func LimitInFlight(log *zap.Logger, limit int) gin.HandlerFunc {
	if limit < 1 {
		limit = 1
	}
	slots := make(chan struct{}, limit)

	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			c.Next()
		default:
			log.Warn("rejecting request, too many in flight",
				zap.String("route", c.FullPath()),
				zap.Int("limit", limit),
				zap.String("request_id", GetRequestID(c)),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many concurrent requests"})
		}
	}
}
