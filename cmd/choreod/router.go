package main

import (
	"net/http"
	"time"

	"github.com/edirooss/choreo/internal/config"
	"github.com/edirooss/choreo/internal/http/handler"
	mw "github.com/edirooss/choreo/internal/http/middleware"
	"github.com/edirooss/choreo/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func buildRouter(
	log *zap.Logger,
	dev bool,
	snapshots service.SnapshotSource,
	frames handler.FrameStatsProvider,
	display func() handler.DisplayController,
) *gin.Engine {
	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()

	r := gin.New()
	{
		r.Use(gin.Recovery())
		r.Use(mw.RequestID())

		if dev { // local dashboards
			r.Use(cors.New(cors.Config{
				AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:  []string{"GET", "PUT", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "X-Cache", "X-Summary-Generated-At"},
				MaxAge:        12 * time.Hour,
			}))
		} else {
			r.Use(secure.New(secure.Config{
				FrameDeny:          true,
				ContentTypeNosniff: true,
				BrowserXssFilter:   true,
			}))
		}

		r.Use(mw.AccessLog(log.Named("http")))
	}

	r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	r.GET("/api/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    config.Version,
			"git_commit": config.GitCommit,
			"build_date": config.BuildDate,
		})
	})

	choreographers := handler.NewChoreographersHandler(log, snapshots)
	r.GET("/api/choreographers", choreographers.GetList)

	r.GET("/api/frames", handler.Frames(frames))

	displayhndlr := handler.NewDisplayHandler(log, display)
	displayGrp := r.Group("/api/display", mw.LimitInFlight(log.Named("display-limit"), 4))
	{
		displayGrp.GET("/refresh-rate", displayhndlr.GetRefreshRate)
		displayGrp.PUT("/refresh-rate", displayhndlr.SetRefreshRate)
	}

	return r
}
