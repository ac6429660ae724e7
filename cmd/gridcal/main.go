package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"gridcal/internal/capture"
	"gridcal/internal/config"
	appLog "gridcal/internal/log"
	"gridcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds parsed CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	noCapture  bool
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("gridcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"pixels_per_minute", conf.Grid.PixelsPerMinute,
		"ics_count", len(conf.ICS),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	server := web.NewServer(conf, flags.debug)

	if flags.once {
		runOnce(ctx, server, conf, flags)
		return
	}

	// Periodic refresh: drop caches so the next request recomputes from
	// fresh feed data, then re-capture the preview.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		appLog.Info("refresh tick", "schedule", conf.RefreshCron)
		server.InvalidateCaches()
		if !flags.noCapture {
			if err := capturePreview(ctx, conf, flags.debug); err != nil {
				appLog.Error("preview capture failed", err)
			}
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	if err := server.Serve(ctx); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}
	appLog.Info("gridcal exiting")
}

// runOnce serves just long enough to capture a single preview, then exits.
func runOnce(ctx context.Context, server *web.Server, conf *config.Config, flags flagConfig) {
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	go func() {
		if err := server.Serve(srvCtx); err != nil {
			appLog.Error("HTTP server stopped", err)
		}
	}()

	// Give the listener a moment to come up before pointing Chromium at it.
	time.Sleep(300 * time.Millisecond)

	if flags.noCapture {
		appLog.Info("once mode with capture disabled; nothing to do")
		return
	}
	if err := capturePreview(ctx, conf, flags.debug); err != nil {
		appLog.Error("preview capture failed", err)
		os.Exit(1)
	}
	appLog.Info("preview captured; exiting")
}

func capturePreview(ctx context.Context, conf *config.Config, debug bool) error {
	outputPath := "/var/lib/gridcal/preview.png"
	if debug {
		outputPath = "./cache/preview.png"
	}

	return capture.GridPNG(ctx, capture.Options{
		URL:        "http://" + conf.Listen + "/",
		OutputPath: outputPath,
	})
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/gridcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Serve, capture one preview PNG, and exit")
	flag.BoolVar(&cfg.noCapture, "no-capture", false, "Disable headless preview capture")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and relative cache/preview paths")

	flag.Parse()

	return cfg
}
