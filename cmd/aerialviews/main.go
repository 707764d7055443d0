// SPDX-License-Identifier: MIT

// aerialviews aggregates aerial media sources into a playlist and serves it,
// together with byte-range streams of the items, over HTTP.
//
// Usage:
//
//	aerialviews -config config.yaml
//	aerialviews healthcheck -addr localhost:8089
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/config"
	"github.com/theothernt/AerialViews-sub000/internal/daemon"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
	"github.com/theothernt/AerialViews-sub000/internal/telemetry"
)

var Version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "aerialviews"})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	loader := config.NewLoader(configPath, Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	xglog.Reconfigure(xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service})
	logger := xglog.WithComponent("main")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldSource, source).
		Str(xglog.FieldPath, configPath).
		Str(xglog.FieldVersion, Version).
		Msg("configuration loaded")
	config.LogEffective(logger, cfg)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	holder := config.NewConfigHolder(cfg, loader)

	// Playlist options are re-read per run so reloads apply without restart.
	rt, err := daemon.Build(cfg, func() aggregator.Options {
		return holder.Get().Playlist.Options()
	}, daemon.Overrides{})
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("wire runtime: %w", err)
	}
	daemon.ExportOnPublish(rt.Service, func() string {
		return holder.Get().Playlist.ExportPath
	}, xglog.WithComponent("export"))

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     xglog.WithComponent("daemon"),
		APIHandler: rt.API,
	})
	if err != nil {
		_ = rt.Close(ctx)
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	// Hooks run in reverse: cache first, then the tracer flush.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("cache", rt.Close)

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str(xglog.FieldVersion, Version).
		Str("addr", cfg.Server.ListenAddr).
		Dur("refresh_interval", cfg.Refresh.Interval).
		Msg("starting aerialviews")

	app := daemon.NewApp(xglog.WithComponent("app"), mgr, holder, rt.Service)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown.complete").Msg("aerialviews stopped")
	return nil
}
