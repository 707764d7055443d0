// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theothernt/AerialViews-sub000/internal/aggregator"
	"github.com/theothernt/AerialViews-sub000/internal/config"
	"github.com/theothernt/AerialViews-sub000/internal/source"
)

func localConfig(t *testing.T, files ...string) config.AppConfig {
	t.Helper()
	root := t.TempDir()
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("data-"+name), 0o600))
	}

	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Playlist.Shuffle = false
	cfg.Sources.Local.Enabled = true
	cfg.Sources.Local.Roots = []string{root}
	cfg.Sources.Local.MediaType = source.MediaVideos
	cfg.Cache.Type = "none"
	cfg.Server.RateLimit = 0
	return cfg
}

func buildRuntime(t *testing.T, cfg config.AppConfig) *Runtime {
	t.Helper()
	rt, err := Build(cfg, func() aggregator.Options { return cfg.Playlist.Options() }, Overrides{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestBuildWiresAllSources(t *testing.T) {
	rt := buildRuntime(t, localConfig(t))

	var names []string
	for _, s := range rt.Sources {
		names = append(names, s.Name())
	}
	assert.Len(t, names, 6)
	assert.NotNil(t, rt.Streams)
	assert.NotNil(t, rt.Health)
}

func TestBuildRejectsUnknownCache(t *testing.T) {
	cfg := localConfig(t)
	cfg.Cache.Type = "memcached"
	_, err := Build(cfg, cfg.Playlist.Options, Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open cache")
}

func TestRuntimeServesLocalPlaylist(t *testing.T) {
	rt := buildRuntime(t, localConfig(t, "a.mov", "b.mp4", "notes.txt"))

	// Before the first run the playlist is not ready.
	rec := httptest.NewRecorder()
	rt.API.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/playlist", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	pl, report := rt.Service.Refresh(context.Background())
	require.NotNil(t, pl)
	assert.Empty(t, report.Failed())
	assert.Equal(t, 2, pl.Size())

	rec = httptest.NewRecorder()
	rt.API.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/playlist", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Size int `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Size)

	rec = httptest.NewRecorder()
	rt.API.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/items/0/stream", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec = httptest.NewRecorder()
	rt.API.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "data", rec.Body.String())
}

func TestExportOnPublish(t *testing.T) {
	cfg := localConfig(t, "a.mov", "b.mp4")
	rt := buildRuntime(t, cfg)

	out := filepath.Join(t.TempDir(), "playlist.m3u")
	path := out
	ExportOnPublish(rt.Service, func() string { return path }, zerolog.Nop())

	rt.Service.Refresh(context.Background())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#EXTM3U")
	assert.Contains(t, string(data), "a.mov")
	assert.Contains(t, string(data), "b.mp4")

	// An empty path disables the export.
	require.NoError(t, os.Remove(out))
	path = ""
	rt.Service.Refresh(context.Background())
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}
