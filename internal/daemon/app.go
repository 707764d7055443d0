// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/config"
	xglog "github.com/theothernt/AerialViews-sub000/internal/log"
)

// App owns the long-lived runtime: config watching, reload wiring, the
// refresh loop and the HTTP server managed by Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	service      *aggregator.Service
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, service *aggregator.Service) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		service:      service,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or one
// of them fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		g.Go(func() error {
			// The watcher is best-effort; SIGHUP still reloads without it.
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config watcher stopped")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			prev := a.cfgHolder.Get()
			for {
				select {
				case <-ctx.Done():
					return nil
				case next := <-applyCh:
					a.apply(prev, next)
					prev = next
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
						continue
					}
					if a.service != nil {
						a.service.Trigger()
					}
				}
			}
		})
	}

	if a.service != nil {
		interval := a.refreshInterval()
		g.Go(func() error {
			return a.service.Run(ctx, interval)
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}

func (a *App) refreshInterval() time.Duration {
	if a.cfgHolder == nil {
		return 0
	}
	return a.cfgHolder.Get().Refresh.Interval
}

// apply takes over the settings that are safe to change at runtime.
// Playlist options are read per run, so they need no action here.
func (a *App) apply(prev, next config.AppConfig) {
	if prev.Log.Level != next.Log.Level {
		xglog.Reconfigure(xglog.Config{Level: next.Log.Level, Service: next.Log.Service})
		a.logger.Info().
			Str(xglog.FieldEvent, "log.level_changed").
			Str("from", prev.Log.Level).
			Str("to", next.Log.Level).
			Msg("log level changed")
	}

	restart := func(section string) {
		a.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Str("section", section).
			Msg("change takes effect after restart")
	}
	if !reflect.DeepEqual(prev.Sources, next.Sources) {
		restart("sources")
	}
	if prev.Streaming != next.Streaming {
		restart("streaming")
	}
	if prev.Cache != next.Cache {
		restart("cache")
	}
	if prev.Server != next.Server {
		restart("server")
	}
	if prev.Refresh != next.Refresh {
		restart("refresh")
	}
	if prev.Telemetry != next.Telemetry {
		restart("telemetry")
	}
}
