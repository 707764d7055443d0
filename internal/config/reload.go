// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "github.com/theothernt/AerialViews-sub000/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigHolder holds configuration with atomic reloading capability.
// A failed reload keeps the previous configuration in place.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	watcher *fsnotify.Watcher

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewConfigHolder creates a holder seeded with an already loaded config.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current: initial,
		loader:  loader,
		logger:  xlog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration again, then swaps it in.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(xlog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(xlog.FieldEvent, "config.reload_failed").
			Msg("new configuration rejected, keeping the current one")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)
	h.notify(next)

	h.logger.Info().Str(xlog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration whenever its file changes, until ctx is
// done. The parent directory is watched so editors that replace the file
// by rename are picked up too. With no config file Watch just waits.
func (h *ConfigHolder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().
			Str(xlog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (environment-only configuration)")
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().
		Str(xlog.FieldEvent, "config.watcher_started").
		Str(xlog.FieldPath, path).
		Msg("watching config file for changes")

	target := filepath.Clean(path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xlog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().
				Str(xlog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				_ = h.Reload(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().
				Err(err).
				Str(xlog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// RegisterListener registers a channel that receives every successfully
// reloaded config. Sends never block; a full channel misses the update.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *ConfigHolder) notify(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().
				Str(xlog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges reports the settings operators most often touch. Source URLs
// are redacted.
func (h *ConfigHolder) logChanges(prev, next AppConfig) {
	changedStr := func(field, a, b string) {
		if a != b {
			h.logger.Info().Str("old", a).Str("new", b).Msgf("config changed: %s", field)
		}
	}
	changedBool := func(field string, a, b bool) {
		if a != b {
			h.logger.Info().Bool("old", a).Bool("new", b).Msgf("config changed: %s", field)
		}
	}

	changedBool("playlist.shuffle", prev.Playlist.Shuffle, next.Playlist.Shuffle)
	changedBool("playlist.removeDuplicates", prev.Playlist.RemoveDuplicates, next.Playlist.RemoveDuplicates)
	changedBool("playlist.autoTimeOfDay", prev.Playlist.AutoTimeOfDay, next.Playlist.AutoTimeOfDay)
	changedStr("playlist.videoDescription", prev.Playlist.VideoDescription, next.Playlist.VideoDescription)
	changedStr("playlist.photoDescription", prev.Playlist.PhotoDescription, next.Playlist.PhotoDescription)

	changedBool("sources.local.enabled", prev.Sources.Local.Enabled, next.Sources.Local.Enabled)
	if !slices.Equal(prev.Sources.Local.Roots, next.Sources.Local.Roots) {
		h.logger.Info().Strs("old", prev.Sources.Local.Roots).Strs("new", next.Sources.Local.Roots).
			Msg("config changed: sources.local.roots")
	}
	changedBool("sources.smb.enabled", prev.Sources.SMB.Enabled, next.Sources.SMB.Enabled)
	changedStr("sources.smb.url", xlog.RedactURI(prev.Sources.SMB.URL), xlog.RedactURI(next.Sources.SMB.URL))
	changedBool("sources.webdav.enabled", prev.Sources.WebDAV.Enabled, next.Sources.WebDAV.Enabled)
	changedStr("sources.webdav.url", xlog.RedactURI(prev.Sources.WebDAV.URL), xlog.RedactURI(next.Sources.WebDAV.URL))
	changedBool("sources.manifest.enabled", prev.Sources.Manifest.Enabled, next.Sources.Manifest.Enabled)
	changedStr("sources.manifest.quality", string(prev.Sources.Manifest.Quality), string(next.Sources.Manifest.Quality))
	changedBool("sources.immich.enabled", prev.Sources.Immich.Enabled, next.Sources.Immich.Enabled)
	changedStr("sources.immich.url", xlog.RedactURI(prev.Sources.Immich.URL), xlog.RedactURI(next.Sources.Immich.URL))
	changedBool("sources.customfeed.enabled", prev.Sources.CustomFeed.Enabled, next.Sources.CustomFeed.Enabled)

	changedStr("streaming.lengthFallback", prev.Streaming.LengthFallback, next.Streaming.LengthFallback)
	changedStr("log.level", prev.Log.Level, next.Log.Level)
	if prev.Refresh.Interval != next.Refresh.Interval {
		h.logger.Info().Dur("old", prev.Refresh.Interval).Dur("new", next.Refresh.Interval).
			Msg("config changed: refresh.interval")
	}
}
