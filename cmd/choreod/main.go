package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edirooss/choreo/internal/choreographer"
	"github.com/edirooss/choreo/internal/config"
	"github.com/edirooss/choreo/internal/infrastructure/looper"
	"github.com/edirooss/choreo/internal/service"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	devMode    bool
)

func main() {
	app := cli.App{
		Name:      "choreod",
		HelpName:  "choreod",
		Usage:     "vsync-aligned frame callback scheduler",
		UsageText: "choreod [--config FILE] [--dev]",
		Version:   fmt.Sprintf("%s (commit %s, built %s)", config.Version, config.GitCommit, config.BuildDate),
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "config, c",
				Usage:       "YAML config file (default: built-in defaults)",
				Destination: &configPath,
			},
			cli.BoolFlag{
				Name:        "dev",
				Usage:       "development logging and CORS for local dashboards",
				EnvVar:      "CHOREOD_DEV",
				Destination: &devMode,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "choreod: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cli.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(devMode)
	defer log.Sync()
	zap.ReplaceGlobals(log)
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	screens := openDisplays(ctx, log, cfg)
	defer screens.Close()

	registry := choreographer.NewRegistry(log, screens.factory)
	choreographer.SetDefault(registry)

	// The main loop plays the UI thread: it owns a choreographer and runs
	// the frame statistics client.
	loop := looper.New(log)
	frames := service.NewFrameStatsService(log)
	loop.Post(func(ctx context.Context) {
		if err := frames.Start(ctx); err != nil {
			log.Error("frame stats not started", zap.Error(err))
		}
	})

	httpsrv := &http.Server{
		Addr:              cfg.HTTPAddr + ":" + cfg.Port,
		Handler:           buildRouter(log, devMode, registry, frames, screens.controller),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		frames.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpsrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("stopped with error", zap.Error(err))
		return err
	}
	log.Info("stopped")
	return nil
}

// helpers

func buildLogger(dev bool) *zap.Logger {
	if !dev {
		logConfig := zap.NewProductionConfig()
		logConfig.DisableStacktrace = true
		return zap.Must(logConfig.Build())
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
